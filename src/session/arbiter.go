package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"vismadk/src/adk"
	"vismadk/src/settings"

	"go.uber.org/zap"
)

// Company is one registered logical dataset the driver can connect to.
type Company struct {
	Name        string
	CommonPath  string
	CompanyPath string
	Username    string
	Password    string
}

// Arbiter owns the single driver connection and decides which company
// holds it. Any number of sessions may share the connection to the
// active company; switching to another company waits until they have
// all been released.
type Arbiter struct {
	driver   adk.Driver
	settings *settings.Arguments
	logger   *zap.SugaredLogger

	mu             sync.Mutex
	companies      map[string]Company
	activeCompany  string // company path, empty while no connection is open
	activeSessions int
}

// Session is one caller's right to use the open connection. Release it
// when done; the connection itself stays open for the next caller.
type Session struct {
	arb     *Arbiter
	company Company
	once    sync.Once
}

// NewArbiter creates an arbiter with no registered companies and no open
// connection.
func NewArbiter(driver adk.Driver, args *settings.Arguments, logger *zap.SugaredLogger) *Arbiter {
	return &Arbiter{
		driver:    driver,
		settings:  args,
		logger:    logger,
		companies: make(map[string]Company),
	}
}

// RegisterCompany adds a company under a name usable with Acquire.
// Registering an existing name overwrites the previous entry. When
// username or password is empty, both are read from the configured
// environment variables.
func (a *Arbiter) RegisterCompany(name, commonPath, companyPath, username, password string) error {
	if username == "" || password == "" {
		var err error
		username, password, err = a.envCredentials()
		if err != nil {
			return err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.companies[name] = Company{
		Name:        name,
		CommonPath:  commonPath,
		CompanyPath: companyPath,
		Username:    username,
		Password:    password,
	}
	a.logger.Infow("company registered", "name", name, "companyPath", companyPath)
	return nil
}

func (a *Arbiter) envCredentials() (string, string, error) {
	username, ok := os.LookupEnv(a.settings.UsernameEnv)
	if !ok {
		return "", "", fmt.Errorf("%w: pass them explicitly or set %s and %s",
			ErrCredentials, a.settings.UsernameEnv, a.settings.PasswordEnv)
	}
	password, ok := os.LookupEnv(a.settings.PasswordEnv)
	if !ok {
		return "", "", fmt.Errorf("%w: pass them explicitly or set %s and %s",
			ErrCredentials, a.settings.UsernameEnv, a.settings.PasswordEnv)
	}
	return username, password, nil
}

// Acquire returns a session against the named company, opening or
// switching the driver connection as needed. If another company is
// active, Acquire polls until its sessions drain or the configured
// timeout passes.
func (a *Arbiter) Acquire(name string) (*Session, error) {
	a.mu.Lock()
	company, ok := a.companies[name]
	if !ok {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompany, name)
	}

	// Fast path: the connection already belongs to this company.
	if a.activeCompany == company.CompanyPath {
		a.activeSessions++
		a.mu.Unlock()
		return &Session{arb: a, company: company}, nil
	}
	a.mu.Unlock()

	deadline := time.Now().Add(a.settings.AcquireTimeout)
	for {
		a.mu.Lock()
		if a.activeCompany == company.CompanyPath {
			// Another caller switched to this company while we polled.
			a.activeSessions++
			a.mu.Unlock()
			return &Session{arb: a, company: company}, nil
		}
		if a.activeSessions == 0 {
			s, err := a.switchLocked(company)
			a.mu.Unlock()
			return s, err
		}
		a.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrAcquireTimeout, name)
		}
		time.Sleep(a.settings.PollInterval)
	}
}

// switchLocked closes the previous connection and opens the new one.
// Caller holds a.mu and has verified activeSessions == 0.
func (a *Arbiter) switchLocked(company Company) (*Session, error) {
	if a.activeCompany != "" {
		a.logger.Infow("closing previous company", "companyPath", a.activeCompany)
		a.driver.Close()
		a.activeCompany = ""
	}

	st := a.driver.Open(company.CommonPath, company.CompanyPath, company.Username, company.Password)
	if !st.OK() {
		// No partial session state survives a failed open.
		text := a.driver.ErrorText(st)
		a.logger.Errorw("failed to open company", "name", company.Name, "error", text)
		return nil, fmt.Errorf("%w %s: %s", ErrConnection, company.Name, text)
	}

	a.activeCompany = company.CompanyPath
	a.activeSessions = 1
	a.logger.Infow("company opened", "name", company.Name, "companyPath", company.CompanyPath)
	return &Session{arb: a, company: company}, nil
}

// ActiveSessions reports how many sessions currently hold the open
// connection.
func (a *Arbiter) ActiveSessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.activeSessions
}

// Shutdown closes the driver connection if one is open. Call at process
// exit, after all sessions are released.
func (a *Arbiter) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeCompany != "" {
		a.driver.Close()
		a.activeCompany = ""
	}
}

// Company returns the registration this session was acquired for.
func (s *Session) Company() Company {
	return s.company
}

// Release gives the connection back. Safe to call more than once; only
// the first call decrements the session count. The connection is closed
// lazily, when a different company is next acquired.
func (s *Session) Release() {
	s.once.Do(func() {
		s.arb.mu.Lock()
		defer s.arb.mu.Unlock()
		s.arb.activeSessions--
	})
}
