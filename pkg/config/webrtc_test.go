package config

import (
	"errors"
	"testing"
)

func TestIceServersDefault(t *testing.T) {
	w := Webrtc{}
	if err := w.AddIceServersEnv(); err != nil {
		t.Fatal(err)
	}
	if len(w.IceServers) != len(DefaultIceServers) {
		t.Errorf("expected the default set, got %v", w.IceServers)
	}
}

func TestIceServersEnvOverride(t *testing.T) {
	t.Setenv("CHAINMEET_ICESERVERS[0]_URLS", "stun:stun.example.com:3478")
	w := Webrtc{IceServers: []IceServer{{Urls: "stun:old.example.com:3478"}}}
	if err := w.AddIceServersEnv(); err != nil {
		t.Fatal(err)
	}
	if w.IceServers[0].Urls != "stun:stun.example.com:3478" {
		t.Errorf("env override not applied: %v", w.IceServers)
	}
}

func TestTurnNeedsCredentials(t *testing.T) {
	t.Setenv("CHAINMEET_ICESERVERS[0]_URLS", "turn:turn.example.com:3478")
	t.Setenv("CHAINMEET_ICESERVERS[0]_USERNAME", "root")
	w := Webrtc{}
	if err := w.AddIceServersEnv(); !errors.Is(err, ErrTurnCredentials) {
		t.Fatalf("expected ErrTurnCredentials, got %v", err)
	}

	t.Setenv("CHAINMEET_ICESERVERS[0]_CREDENTIAL", "secret")
	w = Webrtc{}
	if err := w.AddIceServersEnv(); err != nil {
		t.Fatal(err)
	}
	if w.IceServers[0].Username != "root" || w.IceServers[0].Credential != "secret" {
		t.Errorf("credentials not applied: %+v", w.IceServers[0])
	}
}
