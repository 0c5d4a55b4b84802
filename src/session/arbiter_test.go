package session_test

import (
	"sync/atomic"
	"testing"
	"time"

	"vismadk/src/adk"
	"vismadk/src/session"
	"vismadk/src/settings"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingDriver counts connection churn so tests can assert exactly one
// close/open pair per company switch.
type countingDriver struct {
	adk.Driver
	opens  atomic.Int32
	closes atomic.Int32
}

func (d *countingDriver) Open(commonPath, companyPath, username, password string) adk.Status {
	d.opens.Add(1)
	return d.Driver.Open(commonPath, companyPath, username, password)
}

func (d *countingDriver) Close() {
	d.closes.Add(1)
	d.Driver.Close()
}

func testArgs() *settings.Arguments {
	return &settings.Arguments{
		AcquireTimeout: 500 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
		UsernameEnv:    "VISMA_USERNAME",
		PasswordEnv:    "VISMA_PASSWORD",
	}
}

func newTestArbiter(t *testing.T) (*countingDriver, *session.Arbiter) {
	t.Helper()
	mem, err := adk.SampleDriver(zap.NewNop().Sugar(), "companies/one")
	require.NoError(t, err)
	mem.AddCompany("companies/two")

	driver := &countingDriver{Driver: mem}
	arb := session.NewArbiter(driver, testArgs(), zap.NewNop().Sugar())
	require.NoError(t, arb.RegisterCompany("One", "common", "companies/one", "system", "sample"))
	require.NoError(t, arb.RegisterCompany("Two", "common", "companies/two", "system", "sample"))
	return driver, arb
}

func TestAcquireUnknownCompany(t *testing.T) {
	require := require.New(t)
	_, arb := newTestArbiter(t)

	_, err := arb.Acquire("Three")
	require.ErrorIs(err, session.ErrUnknownCompany)
}

func TestAcquireSharesOpenConnection(t *testing.T) {
	require := require.New(t)
	driver, arb := newTestArbiter(t)

	s1, err := arb.Acquire("One")
	require.NoError(err)
	s2, err := arb.Acquire("One")
	require.NoError(err)
	require.Equal(2, arb.ActiveSessions())

	// The second acquisition reuses the open connection.
	require.Equal(int32(1), driver.opens.Load())

	s1.Release()
	s2.Release()
	require.Equal(0, arb.ActiveSessions())
}

func TestSwitchWaitsForRelease(t *testing.T) {
	require := require.New(t)
	driver, arb := newTestArbiter(t)

	s1, err := arb.Acquire("One")
	require.NoError(err)

	acquired := make(chan error, 1)
	go func() {
		s2, err := arb.Acquire("Two")
		if err == nil {
			defer s2.Release()
		}
		acquired <- err
	}()

	select {
	case err := <-acquired:
		t.Fatalf("acquire of Two finished while One was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	s1.Release()
	require.NoError(<-acquired)

	// Exactly one close/open pair for the switch.
	require.Equal(int32(1), driver.closes.Load())
	require.Equal(int32(2), driver.opens.Load())
}

func TestAcquireTimesOut(t *testing.T) {
	require := require.New(t)
	_, arb := newTestArbiter(t)

	s1, err := arb.Acquire("One")
	require.NoError(err)
	defer s1.Release()

	_, err = arb.Acquire("Two")
	require.ErrorIs(err, session.ErrAcquireTimeout)
	require.Equal(1, arb.ActiveSessions())
}

func TestAcquireConnectionError(t *testing.T) {
	require := require.New(t)
	_, arb := newTestArbiter(t)
	require.NoError(arb.RegisterCompany("Broken", "common", "companies/one", "system", "wrong-password"))

	_, err := arb.Acquire("Broken")
	require.ErrorIs(err, session.ErrConnection)
	require.Contains(err.Error(), "invalid username or password")
	require.Equal(0, arb.ActiveSessions())

	// A failed open leaves the arbiter clean for the next caller.
	s, err := arb.Acquire("One")
	require.NoError(err)
	s.Release()
}

func TestRegisterCompanyCredentials(t *testing.T) {
	mem, err := adk.SampleDriver(zap.NewNop().Sugar(), "companies/one")
	require.NoError(t, err)

	args := testArgs()
	args.UsernameEnv = "VISMADK_TEST_USERNAME"
	args.PasswordEnv = "VISMADK_TEST_PASSWORD"
	arb := session.NewArbiter(mem, args, zap.NewNop().Sugar())

	t.Run("missing environment credentials fail", func(t *testing.T) {
		err := arb.RegisterCompany("EnvCo", "common", "companies/one", "", "")
		require.ErrorIs(t, err, session.ErrCredentials)
	})

	t.Run("environment credentials are picked up", func(t *testing.T) {
		t.Setenv("VISMADK_TEST_USERNAME", "system")
		t.Setenv("VISMADK_TEST_PASSWORD", "sample")
		require.NoError(t, arb.RegisterCompany("EnvCo", "common", "companies/one", "", ""))

		s, err := arb.Acquire("EnvCo")
		require.NoError(t, err)
		s.Release()
	})

	t.Run("re-registration overwrites", func(t *testing.T) {
		mem.AddCompany("companies/two")
		require.NoError(t, arb.RegisterCompany("EnvCo", "common", "companies/two", "system", "sample"))
		s, err := arb.Acquire("EnvCo")
		require.NoError(t, err)
		require.Equal(t, "companies/two", s.Company().CompanyPath)
		s.Release()
	})
}
