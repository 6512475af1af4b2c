package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/SteamServerUI/SaveBackupManager/backupmgr"
)

// Handler serves the backup manager over the plugin API
type Handler struct {
	manager *backupmgr.BackupManager
	bridge  *backupmgr.HostBridge
	log     *slog.Logger
}

type setResponse struct {
	Name       string    `json:"name"`
	LastBackup time.Time `json:"last_backup"`
	Backups    int       `json:"backups"`
}

type backupsResponse struct {
	Set     string   `json:"set"`
	Backups []string `json:"backups"`
}

type statusResponse struct {
	Identifier       string `json:"identifier"`
	BackupsCompleted bool   `json:"backups_completed"`
	RestoreCompleted bool   `json:"restore_completed"`
	QueuedBackups    int    `json:"queued_backups"`
	RestoredGame     string `json:"restored_game"`
	Sets             int    `json:"sets"`
}

type jobResponse struct {
	ID  string `json:"id"`
	Set string `json:"set"`
}

type setRequest struct {
	Set    string `json:"set"`
	Backup string `json:"backup"`
}

type cloneRequest struct {
	Kind string `json:"kind"` // game, backup or from-backup
	Set  string `json:"set"`
	Into string `json:"into"`
}

type sessionRequest struct {
	MainMenu bool `json:"main_menu"`
}

func NewHandler(manager *backupmgr.BackupManager, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		bridge:  backupmgr.NewHostBridge(manager),
		log:     log.With("component", "api"),
	}
}

// Routes returns every endpoint keyed by path, ready for PluginLib.RegisterRoute.
func (h *Handler) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"/api/v1/sets":               h.ListSets,
		"/api/v1/sets/erase":         h.EraseSet,
		"/api/v1/backups":            h.ListBackups,
		"/api/v1/backups/create":     h.CreateBackup,
		"/api/v1/backups/all":        h.BackupAll,
		"/api/v1/backups/restore":    h.RestoreBackup,
		"/api/v1/backups/clone":      h.Clone,
		"/api/v1/backups/delete":     h.DeleteBackup,
		"/api/v1/status":             h.Status,
		"/api/v1/host/about-to-save": h.AboutToSave,
		"/api/v1/host/saved":         h.Saved,
		"/api/v1/host/session":       h.Session,
	}
}

// ListSets returns all known backup sets
// GET /api/v1/sets
func (h *Handler) ListSets(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	sets := h.manager.BackupSets()
	resp := make([]setResponse, 0, len(sets))
	for _, set := range sets {
		resp = append(resp, setResponse{
			Name:       set.Name(),
			LastBackup: set.Time(),
			Backups:    len(set.Backups()),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListBackups returns the backups of one set, oldest first
// GET /api/v1/backups?set=<name>
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	name := r.URL.Query().Get("set")
	set := h.manager.BackupSet(name)
	if set == nil {
		writeError(w, http.StatusNotFound, "unknown backup set")
		return
	}
	writeJSON(w, http.StatusOK, backupsResponse{Set: name, Backups: set.Backups()})
}

// CreateBackup backs up one save game
// POST /api/v1/backups/create
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decode(w, r, &req) {
		return
	}
	job, err := h.manager.BackupGameByName(req.Set)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse{ID: job.ID, Set: req.Set})
}

// BackupAll queues a backup of every set
// POST /api/v1/backups/all
func (h *Handler) BackupAll(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": h.manager.BackupAll()})
}

// RestoreBackup restores a backup over the live save game
// POST /api/v1/backups/restore
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.manager.RestoreGame(req.Set, req.Backup); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "restore scheduled"})
}

// Clone copies a save game or its archive under a new name
// POST /api/v1/backups/clone
func (h *Handler) Clone(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if !decode(w, r, &req) {
		return
	}
	var err error
	switch req.Kind {
	case "game":
		err = h.manager.CloneGame(req.Set, req.Into)
	case "backup":
		err = h.manager.CloneBackup(req.Set, req.Into)
	case "from-backup":
		err = h.manager.CloneGameFromBackup(req.Set, req.Into)
	default:
		writeError(w, http.StatusBadRequest, "kind must be game, backup or from-backup")
		return
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"set": req.Into})
}

// DeleteBackup removes one backup of a set
// POST /api/v1/backups/delete
func (h *Handler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Backup == "" {
		writeError(w, http.StatusBadRequest, "backup is required")
		return
	}
	set := h.manager.BackupSet(req.Set)
	if set == nil {
		writeError(w, http.StatusNotFound, "unknown backup set")
		return
	}
	if err := h.manager.DeleteBackup(set, req.Backup); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EraseSet deletes the whole archive of a set
// POST /api/v1/sets/erase
func (h *Handler) EraseSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decode(w, r, &req) {
		return
	}
	set := h.manager.BackupSet(req.Set)
	if set == nil {
		writeError(w, http.StatusNotFound, "unknown backup set")
		return
	}
	if err := h.manager.EraseBackupSet(set); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status reports the completion flags
// GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Identifier:       h.manager.Identifier(),
		BackupsCompleted: h.manager.BackupsCompleted(),
		RestoreCompleted: h.manager.RestoreCompleted(),
		QueuedBackups:    h.manager.QueuedBackups(),
		RestoredGame:     h.manager.RestoredGame(),
		Sets:             h.manager.NumberOfBackupSets(),
	})
}

// AboutToSave blocks until pending backups finished or the request is cancelled
// POST /api/v1/host/about-to-save
func (h *Handler) AboutToSave(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	if err := h.bridge.OnAboutToPersist(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Saved reports that the host persisted a save game
// POST /api/v1/host/saved
func (h *Handler) Saved(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Set == "" {
		writeError(w, http.StatusBadRequest, "set is required")
		return
	}
	h.bridge.OnPersisted(req.Set)
	w.WriteHeader(http.StatusNoContent)
}

// Session switches the queue workers with the host session state
// POST /api/v1/host/session
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	h.bridge.OnActiveSessionChanged(req.MainMenu)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, backupmgr.ErrUnknownSet):
		status = http.StatusNotFound
	case errors.Is(err, backupmgr.ErrPreconditionFailed):
		status = http.StatusConflict
	}
	h.log.Warn("request failed", "status", status, "error", err)
	writeError(w, status, err.Error())
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if !allow(w, r, http.MethodPost) {
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
