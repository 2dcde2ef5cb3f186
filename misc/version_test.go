package misc

import "testing"

func TestBuildInfo(t *testing.T) {
	if GetAppName() != "cssprune" {
		t.Errorf("GetAppName() = %q", GetAppName())
	}
	if GetVersion() == "" || GetGitHash() == "" {
		t.Error("version information must never be empty")
	}
}
