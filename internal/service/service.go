package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kasapos/backend/internal/advisory"
	"kasapos/backend/internal/cart"
	"kasapos/backend/internal/catalog"
	"kasapos/backend/internal/domain"
	"kasapos/backend/internal/ledger"
	"kasapos/backend/internal/money"
	"kasapos/backend/internal/outbox"
	"kasapos/backend/internal/settlement"
	"kasapos/backend/internal/store"
	"kasapos/backend/internal/xid"
)

var (
	ErrUnknownUser        = errors.New("unknown user")
	ErrBranchNotPermitted = errors.New("branch not permitted for user")
	ErrSessionActive      = errors.New("a session is already active on this terminal")
	ErrNoSession          = errors.New("no active session")
	ErrNothingPending     = errors.New("no action awaiting confirmation")
	ErrAdvisoryBusy       = errors.New("advisory request already in flight")
	ErrNoDialog           = errors.New("payment method has no detail dialog")
	ErrInvalidDate        = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidTerminal    = errors.New("terminal id required")
)

const reportDateLayout = "2006-01-02"

type Dependencies struct {
	Roster  []domain.User
	Catalog *catalog.Catalog
	Engine  *settlement.Engine
	Advisor *advisory.Advisor
	Outbox  *outbox.Outbox
	Reader  store.TransactionReader
	Money   *money.Formatter
	Logger  *zap.Logger
}

// Service is the registry of tills plus the collaborators they share.
type Service struct {
	roster  []domain.User
	catalog *catalog.Catalog
	engine  *settlement.Engine
	advisor *advisory.Advisor
	outbox  *outbox.Outbox
	reader  store.TransactionReader
	money   *money.Formatter
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	tills map[string]*Till
}

func New(deps Dependencies) *Service {
	if deps.Roster == nil {
		deps.Roster = domain.DefaultRoster()
	}
	if deps.Money == nil {
		deps.Money = money.NewFormatter("tr-TR", "₺")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &Service{
		roster:  deps.Roster,
		catalog: deps.Catalog,
		engine:  deps.Engine,
		advisor: deps.Advisor,
		outbox:  deps.Outbox,
		reader:  deps.Reader,
		money:   deps.Money,
		logger:  deps.Logger.Named("service"),
		now:     time.Now,
		tills:   make(map[string]*Till),
	}
}

func (s *Service) Users() []domain.User {
	out := make([]domain.User, len(s.roster))
	copy(out, s.roster)
	return out
}

func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Service) Money() *money.Formatter {
	return s.money
}

// Till returns the till for terminalID, creating it on first use.
func (s *Service) Till(terminalID string) *Till {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tills[terminalID]
	if !ok {
		t = &Till{
			terminalID: terminalID,
			catalog:    s.catalog,
			engine:     s.engine,
			advisor:    s.advisor,
			money:      s.money,
			logger:     s.logger.With(zap.String("terminal_id", terminalID)),
			now:        s.now,
			cart:       cart.New(),
			ledger:     ledger.New(),
			loading:    make(map[string]bool),
		}
		s.tills[terminalID] = t
	}
	return t
}

// Login opens a session for userID on branch at terminalID.
func (s *Service) Login(terminalID string, userID int, branch string) (domain.Session, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return domain.Session{}, ErrInvalidTerminal
	}

	var user *domain.User
	for i := range s.roster {
		if s.roster[i].ID == userID {
			user = &s.roster[i]
			break
		}
	}
	if user == nil {
		return domain.Session{}, ErrUnknownUser
	}
	if !user.CanUseBranch(branch) {
		return domain.Session{}, ErrBranchNotPermitted
	}

	session := domain.Session{
		ID:         xid.New("ses"),
		TerminalID: terminalID,
		User:       *user,
		Branch:     branch,
		StartedAt:  s.now().UTC(),
	}
	if err := s.Till(terminalID).start(session); err != nil {
		return domain.Session{}, err
	}

	s.logger.Info("session started",
		zap.String("terminal_id", terminalID),
		zap.String("session_id", session.ID),
		zap.String("user", user.Name),
		zap.String("branch", branch),
	)
	return session, nil
}

// Logout ends the terminal's session. The terminal's ledger is kept.
func (s *Service) Logout(terminalID string) error {
	ended, err := s.Till(terminalID).end()
	if err != nil {
		return err
	}
	s.logger.Info("session ended",
		zap.String("terminal_id", terminalID),
		zap.String("session_id", ended.ID),
		zap.String("user", ended.User.Name),
	)
	return nil
}

// Session returns the active session on terminalID if its id matches.
func (s *Service) Session(terminalID string, sessionID string) (domain.Session, error) {
	current := s.Till(terminalID).currentSession()
	if current == nil || current.ID != sessionID {
		return domain.Session{}, ErrNoSession
	}
	return *current, nil
}

// SessionReport summarizes the terminal's in-process ledger.
func (s *Service) SessionReport(terminalID string) domain.DailyReport {
	t := s.Till(terminalID)
	report := domain.DailyReport{
		Date:    s.now().Format(reportDateLayout),
		Source:  domain.ReportSourceSession,
		Summary: t.Summary(),
	}
	if current := t.currentSession(); current != nil {
		report.Branch = current.Branch
	}
	return report
}

// RemoteDailyReport summarizes the stored transactions of one UTC day.
// An empty date means today.
func (s *Service) RemoteDailyReport(ctx context.Context, branch string, date string) (domain.DailyReport, error) {
	if s.reader == nil {
		return domain.DailyReport{}, fmt.Errorf("transaction store not configured")
	}

	day := s.now().UTC()
	if date != "" {
		parsed, err := time.Parse(reportDateLayout, date)
		if err != nil {
			return domain.DailyReport{}, ErrInvalidDate
		}
		day = parsed
	}
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	txs, err := s.reader.ListTransactions(ctx, branch, from, to)
	if err != nil {
		s.logger.Error("remote report read failed", zap.String("branch", branch), zap.Error(err))
		return domain.DailyReport{}, err
	}

	return domain.DailyReport{
		Branch:  branch,
		Date:    from.Format(reportDateLayout),
		Source:  domain.ReportSourceRemote,
		Summary: ledger.Summarize(txs),
	}, nil
}

func (s *Service) FailedDeliveries() []outbox.FailedRecord {
	if s.outbox == nil {
		return []outbox.FailedRecord{}
	}
	return s.outbox.Failed()
}

// ReplayFailed re-submits failed remote writes and returns how many were queued.
func (s *Service) ReplayFailed(ctx context.Context) (int, error) {
	if s.outbox == nil {
		return 0, nil
	}
	deliveries, err := s.outbox.Replay(ctx)
	if err != nil {
		return 0, err
	}
	return len(deliveries), nil
}
