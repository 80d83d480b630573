package telemetry_test

import (
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"testing"

	"github.com/petasbytes/mcp-chat/internal/telemetry"
)

// runWithEnv runs TestProbe in a clean env so startup-only config is deterministic.
func runWithEnv(t *testing.T, env map[string]string) (string, error) {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=TestProbe")
	// Empty AGT_* vars would still count as set, so start from PATH only.
	base := []string{"GO_WANT_HELPER_PROCESS=1"}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "PATH=") {
			base = append(base, kv)
			break
		}
	}
	for k, v := range env {
		base = append(base, k+"="+v)
	}
	cmd.Env = base
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestStartupConfig_Matrix(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"baseline_off", map[string]string{}, "observe=false dir=.agent"},
		{"observe_on", map[string]string{"AGT_OBSERVE_JSON": "1"}, "observe=true dir=.agent"},
		{"observe_zero", map[string]string{"AGT_OBSERVE_JSON": "0"}, "observe=false dir=.agent"},
		{"custom_dir", map[string]string{"AGT_ARTIFACTS_DIR": "/tmp/x"}, "observe=false dir=/tmp/x"},
		{"configured", map[string]string{"PROBE_CONFIGURE": "1"}, "observe=true dir=state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := runWithEnv(t, tt.env)
			if err != nil {
				t.Fatalf("subprocess error: %v\n%s", err, got)
			}
			if !slices.Contains(strings.Split(got, "\n"), tt.want) {
				t.Fatalf("want line:\n%s\ngot output:\n%s", tt.want, got)
			}
		})
	}
}

// TestProbe prints the effective config for the parent to assert on.
func TestProbe(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	if os.Getenv("PROBE_CONFIGURE") == "1" {
		telemetry.Configure(true, "state")
	}
	fmt.Printf("observe=%v dir=%s\n", telemetry.ObserveEnabled(), telemetry.ArtifactsDir())
}
