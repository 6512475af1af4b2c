package global

var (
	PluginName        = "SaveBackupManagerPlugin"
	DefaultLogLevel   = "Info"
	PluginAuthor      = "JacksonTheMaster / SteamServerUI Dev Team"
	RunfileIdentifier string
)
