package config

import "testing"

func TestResolveHostForDocker(t *testing.T) {
	// Non-local hosts are never rewritten regardless of environment.
	for _, host := range []string{"catalog-db.example.com", "192.168.1.100", "host.docker.internal"} {
		if got := ResolveHostForDocker(host); got != host {
			t.Errorf("ResolveHostForDocker(%q) = %q, want unchanged", host, got)
		}
	}

	// Localhost variants are rewritten only when running inside Docker.
	for _, host := range []string{"localhost", "127.0.0.1"} {
		got := ResolveHostForDocker(host)
		if IsRunningInDocker() {
			if got != "host.docker.internal" {
				t.Errorf("ResolveHostForDocker(%q) in Docker = %q, want host.docker.internal", host, got)
			}
		} else if got != host {
			t.Errorf("ResolveHostForDocker(%q) outside Docker = %q, want unchanged", host, got)
		}
	}
}
