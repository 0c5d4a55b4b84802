package session

import "errors"

// ErrUnknownCompany is returned when a company name was never registered.
var ErrUnknownCompany = errors.New("company not found, register it first")

// ErrAcquireTimeout is returned when sessions on the previously active
// company did not drain within the configured timeout.
var ErrAcquireTimeout = errors.New("took too long to obtain the company api")

// ErrConnection is returned when the driver refuses to open a company.
var ErrConnection = errors.New("failed to connect to company")

// ErrCredentials is returned when no credentials were given and the
// environment variables are not set either.
var ErrCredentials = errors.New("missing credentials")
