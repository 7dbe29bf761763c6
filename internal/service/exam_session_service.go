package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qcmhub/qcm-backend/internal/config"
	"github.com/qcmhub/qcm-backend/internal/model"
	"github.com/qcmhub/qcm-backend/internal/repository"
	"github.com/qcmhub/qcm-backend/internal/response"
	"github.com/rs/zerolog"
)

// localStartLayouts are accepted for start times sent without a UTC offset.
var localStartLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ExamSessionService is the session registry: scheduling, lookup, listing and deletion.
type ExamSessionService struct {
	sessions SessionStore
	bank     QuestionBank
	log      zerolog.Logger
	now      func() time.Time
	newCode  func() (string, error)

	location          *time.Location
	minSecondsPerQ    int
	defaultTotalGrade float64
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(
	sessions SessionStore,
	bank QuestionBank,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamSessionService {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &ExamSessionService{
		sessions:          sessions,
		bank:              bank,
		log:               log.With().Str("component", "exam_session_service").Logger(),
		now:               time.Now,
		newCode:           newJoinCode,
		location:          loc,
		minSecondsPerQ:    cfg.MinSecondsPerQuestion,
		defaultTotalGrade: cfg.DefaultTotalGrade,
	}
}

// ParseStartTime accepts RFC3339 or a local wall-clock form interpreted in loc.
func ParseStartTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range localStartLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, raw)
}

// Create schedules a new session owned by the caller.
// All checks run before the single insert; the code is regenerated if the
// active-code index rejects it.
func (s *ExamSessionService) Create(ctx context.Context, caller Caller, req model.CreateExamSessionRequest) (*model.ExamSession, error) {
	if err := Authorize(caller, ActionCreateSession, Resource{}); err != nil {
		return nil, err
	}

	start, err := ParseStartTime(req.StartTime, s.location)
	if err != nil {
		return nil, err
	}
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidDuration)
	}

	qcmID, err := uuid.Parse(req.QCMID)
	if err != nil {
		return nil, fmt.Errorf("%w: qcm", ErrNotFound)
	}
	payload, err := s.bank.GetPayload(ctx, qcmID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: qcm %s", ErrNotFound, qcmID)
		}
		return nil, fmt.Errorf("load qcm: %w", err)
	}

	count := len(payload.Questions)
	if count == 0 {
		return nil, ErrEmptyQuiz
	}
	if req.DurationMinutes*60 < s.minSecondsPerQ*count {
		return nil, fmt.Errorf("%w: %d minutes is less than %ds for each of %d questions",
			ErrInvalidDuration, req.DurationMinutes, s.minSecondsPerQ, count)
	}

	grade := s.defaultTotalGrade
	if req.TotalGrade != nil {
		grade = *req.TotalGrade
	}

	session := &model.ExamSession{
		QCMID:           qcmID,
		OwnerID:         caller.UserID,
		ScopeID:         req.ScopeID,
		Description:     req.Description,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(req.DurationMinutes) * time.Minute),
		DurationMinutes: req.DurationMinutes,
		TotalGrade:      grade,
		IsActive:        true,
	}

	for i := 0; i < joinCodeAttempts; i++ {
		code, err := uniqueJoinCode(ctx, s.sessions, s.newCode)
		if err != nil {
			return nil, err
		}
		session.Code = code

		err = s.sessions.Create(ctx, session)
		if err == nil {
			s.log.Info().
				Str("session_id", session.ID.String()).
				Str("code", session.Code).
				Int("owner_id", session.OwnerID).
				Int("questions", count).
				Msg("Exam session created")
			return session, nil
		}
		if !errors.Is(err, repository.ErrCodeTaken) {
			return nil, fmt.Errorf("create session: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: could not allocate a free join code", ErrConflict)
}

// GetByID retrieves a session by its UUID.
func (s *ExamSessionService) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

// LookupByCode resolves a join code to an active session.
func (s *ExamSessionService) LookupByCode(ctx context.Context, code string) (*model.ExamSession, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	session, err := s.sessions.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: code %s", ErrNotFound, code)
		}
		return nil, fmt.Errorf("lookup code: %w", err)
	}
	if !session.IsActive {
		return nil, ErrInactive
	}
	return session, nil
}

// Delete removes a session the caller owns, provided nobody has joined it.
func (s *ExamSessionService) Delete(ctx context.Context, caller Caller, id uuid.UUID) error {
	session, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := Authorize(caller, ActionDeleteSession, Resource{OwnerID: session.OwnerID}); err != nil {
		return err
	}

	deleted, err := s.sessions.DeleteIfNoAttempts(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrHasAttempts) {
			return fmt.Errorf("%w: session already has attempts", ErrConflict)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w: session already has attempts", ErrConflict)
	}

	s.log.Info().Str("session_id", id.String()).Int("owner_id", caller.UserID).Msg("Exam session deleted")
	return nil
}

// ListForOwner returns the caller's own sessions with derived status.
func (s *ExamSessionService) ListForOwner(ctx context.Context, caller Caller) ([]model.ExamSessionSummary, error) {
	if err := Authorize(caller, ActionListOwnSessions, Resource{}); err != nil {
		return nil, err
	}
	rows, err := s.sessions.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return s.withStatus(rows), nil
}

// ListAll returns every session, paginated. Restricted to privileged roles.
func (s *ExamSessionService) ListAll(ctx context.Context, caller Caller, page, perPage int) ([]model.ExamSessionSummary, *response.Pagination, error) {
	if err := Authorize(caller, ActionListAllSessions, Resource{}); err != nil {
		return nil, nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	rows, total, err := s.sessions.ListAll(ctx, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list sessions: %w", err)
	}

	return s.withStatus(rows), &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// ListOpenForStudent returns active sessions open right now that the caller's scope may join.
func (s *ExamSessionService) ListOpenForStudent(ctx context.Context, caller Caller) ([]model.ExamSessionSummary, error) {
	rows, err := s.sessions.ListOpen(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("list open sessions: %w", err)
	}
	visible := make([]model.ExamSessionSummary, 0, len(rows))
	for _, r := range rows {
		if Authorize(caller, ActionJoinSession, Resource{ScopeID: r.ScopeID}) != nil {
			continue
		}
		visible = append(visible, r)
	}
	return s.withStatus(visible), nil
}

func (s *ExamSessionService) withStatus(rows []model.ExamSessionSummary) []model.ExamSessionSummary {
	if rows == nil {
		return []model.ExamSessionSummary{}
	}
	now := s.now()
	for i := range rows {
		rows[i].Status = rows[i].StatusAt(now)
	}
	return rows
}
