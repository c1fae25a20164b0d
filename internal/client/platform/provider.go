// Package platform abstracts the host platform's push capabilities.
//
// The core pipeline only ever talks to the Provider interface; the concrete
// implementation is selected once at startup.
package platform

import (
	"context"
	"errors"
)

var ErrNoToken = errors.New("no push token available")

// Provider exposes the platform push capabilities.
type Provider interface {
	// RequestPermission asks the platform for notification permission.
	RequestPermission(ctx context.Context) (bool, error)
	// AcquireToken obtains the platform-issued push token.
	AcquireToken(ctx context.Context) (string, error)
	// DeviceType returns the coarse platform tag ("android", "desktop", ...).
	DeviceType() string
}

// StaticProvider serves a pre-issued token from configuration. It stands in
// for platforms where the token is provisioned out of band (desktop builds,
// tests).
type StaticProvider struct {
	token      string
	deviceType string
}

// NewStaticProvider creates a provider around a configured token.
func NewStaticProvider(token, deviceType string) *StaticProvider {
	if deviceType == "" {
		deviceType = "unknown"
	}
	return &StaticProvider{token: token, deviceType: deviceType}
}

func (p *StaticProvider) RequestPermission(_ context.Context) (bool, error) {
	return p.token != "", nil
}

func (p *StaticProvider) AcquireToken(_ context.Context) (string, error) {
	if p.token == "" {
		return "", ErrNoToken
	}
	return p.token, nil
}

func (p *StaticProvider) DeviceType() string {
	return p.deviceType
}
