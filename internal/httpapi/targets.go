package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/netdetective/internal/domain"
	"github.com/hamed0406/netdetective/internal/repo"
)

type targetPayload struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	IntervalSec int    `json:"interval_sec"`
	TimeoutSec  int    `json:"timeout_sec"`
	Enabled     *bool  `json:"enabled"` // defaults to true
}

func (p targetPayload) target(id domain.TargetID) domain.Target {
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	return domain.Target{
		ID:          id,
		Name:        p.Name,
		URL:         p.URL,
		IntervalSec: p.IntervalSec,
		TimeoutSec:  p.TimeoutSec,
		Enabled:     enabled,
	}
}

func decodeTarget(r *http.Request, id domain.TargetID) (domain.Target, error) {
	var p targetPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return domain.Target{}, errors.New("bad payload")
	}
	t := p.target(id)
	if err := t.Validate(); err != nil {
		return domain.Target{}, err
	}
	return t, nil
}

// targetLocks serialises the store write and scheduler update of one target
// so the scheduler ends up with the definition that was committed last.
type targetLocks struct {
	mu    sync.Mutex
	locks map[domain.TargetID]*targetLock
}

type targetLock struct {
	sync.Mutex
	refs int
}

func (l *targetLocks) lock(id domain.TargetID) (unlock func()) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[domain.TargetID]*targetLock)
	}
	tl, ok := l.locks[id]
	if !ok {
		tl = &targetLock{}
		l.locks[id] = tl
	}
	tl.refs++
	l.mu.Unlock()

	tl.Lock()
	return func() {
		tl.Unlock()
		l.mu.Lock()
		if tl.refs--; tl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func targetID(r *http.Request) (domain.TargetID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return domain.TargetID(id), true
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	ts, err := s.Targets.List(r.Context())
	if err != nil {
		s.Logger.Error("list_targets_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list error")
		return
	}
	if ts == nil {
		ts = []domain.Target{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func (s *Server) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	t, err := s.Targets.Get(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		s.Logger.Error("get_target_error", zap.Int64("target_id", int64(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "read error")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCreateTarget(w http.ResponseWriter, r *http.Request) {
	t, err := decodeTarget(r, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Targets.Create(r.Context(), &t); err != nil {
		s.Logger.Error("create_target_error", zap.String("url", t.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not add")
		return
	}
	s.schedule(t)

	s.Logger.Info("target_created",
		zap.Int64("target_id", int64(t.ID)),
		zap.String("name", t.Name),
		zap.String("url", t.URL),
	)
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	t, err := decodeTarget(r, id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer s.locks.lock(id)()

	err = s.Targets.Update(r.Context(), &t)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		s.Logger.Error("update_target_error", zap.Int64("target_id", int64(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not update")
		return
	}
	s.schedule(t)

	s.Logger.Info("target_updated",
		zap.Int64("target_id", int64(t.ID)),
		zap.Bool("enabled", t.Enabled),
	)
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTarget(w http.ResponseWriter, r *http.Request) {
	id, ok := targetID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid target id")
		return
	}
	defer s.locks.lock(id)()

	s.Sched.Remove(id)
	err := s.Results.DeleteTarget(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}
	if err != nil {
		s.Logger.Error("delete_target_error", zap.Int64("target_id", int64(id)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete")
		return
	}

	s.Logger.Info("target_deleted", zap.Int64("target_id", int64(id)))
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// schedule mirrors a committed target into the scheduler. The row is already
// stored, so a failure here is logged and the target is picked up at next boot.
func (s *Server) schedule(t domain.Target) {
	if err := s.Sched.Upsert(t); err != nil {
		s.Logger.Warn("schedule_error", zap.Int64("target_id", int64(t.ID)), zap.Error(err))
	}
}
