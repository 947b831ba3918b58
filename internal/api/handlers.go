// Package api serves the engine's read surface over HTTP: task lookup,
// task count, operational stats, and health probes. Mutations are not
// exposed here; callers drive the engine through its library interface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/slyt3/Covenant/internal/bank"
	"github.com/slyt3/Covenant/internal/escrow"
	"github.com/slyt3/Covenant/internal/journal"
	"github.com/slyt3/Covenant/internal/logging"
)

// Handlers bundles the read-side dependencies.
type Handlers struct {
	Engine  *escrow.Engine
	Bank    *bank.Ledger
	Journal *journal.Journal
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(engine *escrow.Engine, ledger *bank.Ledger, jrnl *journal.Journal) *Handlers {
	return &Handlers{Engine: engine, Bank: ledger, Journal: jrnl}
}

// Register wires all routes onto mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/tasks/", h.HandleGetTask)
	mux.HandleFunc("/stats", h.HandleStats)
	mux.HandleFunc("/healthz", h.HandleHealth)
	mux.HandleFunc("/readyz", h.HandleReady)
}

// HandleGetTask serves GET /tasks/{id}.
func (h *Handlers) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/tasks/")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		http.Error(w, "invalid task id", http.StatusBadRequest)
		return
	}

	task, err := h.Engine.GetTask(id)
	if errors.Is(err, escrow.ErrTaskNotFound) {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, struct {
		escrow.Task
		StatusName string `json:"status_name"`
	}{task, task.Status.String()})
}

type statsResponse struct {
	TaskCount      uint64 `json:"task_count"`
	VaultBalance   uint64 `json:"vault_balance"`
	TotalBurned    uint64 `json:"total_burned"`
	JournalEntries uint64 `json:"journal_entries"`
	JournalID      string `json:"journal_id"`
	PublicKey      string `json:"public_key"`
}

// HandleStats serves GET /stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Journal.EntryCount()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, statsResponse{
		TaskCount:      h.Engine.TaskCount(),
		VaultBalance:   h.Bank.BalanceOf(escrow.DefaultVaultAccount),
		TotalBurned:    h.Bank.TotalBurned(),
		JournalEntries: entries,
		JournalID:      h.Journal.JournalID(),
		PublicKey:      h.Journal.PublicKey(),
	})
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleReady reports readiness: the journal chain must load.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil || h.Journal == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if _, err := h.Journal.EntryCount(); err != nil {
		http.Error(w, "journal unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Log.Error().Err(err).Msg("encoding response failed")
	}
}
