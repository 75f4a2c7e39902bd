package broker

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"
)

// TestMain lets this test binary re-exec itself as a fake broker child
// process (the standard os/exec subprocess-testing trick) when invoked with
// GO_WANT_HELPER_PROCESS=1, so bridge_test.go never shells out to a real
// Trade Republic client.
func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") == "1" {
		runHelperProcess()
		return
	}
	os.Exit(m.Run())
}

func runHelperProcess() {
	switch os.Getenv("HELPER_MODE") {
	case "echo":
		runEchoHelper()
	case "bad_handshake":
		os.Stdout.WriteString("not json\n")
	case "slow_handshake":
		time.Sleep(10 * time.Second)
	case "desync":
		os.Stdout.WriteString(`{"status":"ready","version":"1.0"}` + "\n")
		os.Stdout.WriteString(`{"result":{},"id":"wrong-id"}` + "\n")
	}
}

// runEchoHelper emits the ready handshake, then for every request line
// read from stdin echoes back a success response carrying the same id.
func runEchoHelper() {
	os.Stdout.WriteString(`{"status":"ready","version":"1.0"}` + "\n")
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 1024)
	for {
		n, err := os.Stdin.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				idx := indexByte(buf, '\n')
				if idx < 0 {
					break
				}
				line := buf[:idx]
				buf = buf[idx+1:]
				id := extractID(line)
				os.Stdout.WriteString(`{"result":{"needs_2fa":true},"id":"` + id + `"}` + "\n")
			}
		}
		if err != nil {
			return
		}
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

// extractID pulls the `"id":"..."` value out of a request line without
// pulling in encoding/json, since the helper process must stay dependency-free.
func extractID(line []byte) string {
	marker := []byte(`"id":"`)
	idx := indexOf(line, marker)
	if idx < 0 {
		return ""
	}
	start := idx + len(marker)
	end := start
	for end < len(line) && line[end] != '"' {
		end++
	}
	return string(line[start:end])
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func helperSpawner(t *testing.T, mode string) Spawner {
	t.Helper()
	return func() *exec.Cmd {
		cmd := exec.Command(os.Args[0], "-test.run=TestMain")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_MODE="+mode)
		return cmd
	}
}

func TestBridge_Call_SpawnsAndRoundTrips(t *testing.T) {
	b := New(helperSpawner(t, "echo"))
	defer b.Close()

	result, err := b.Call(context.Background(), "login", map[string]interface{}{"phone": "x", "pin": "1234"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if needs, _ := result["needs_2fa"].(bool); !needs {
		t.Fatalf("expected needs_2fa true, got %+v", result)
	}
}

func TestBridge_Call_BadHandshakeFails(t *testing.T) {
	b := New(helperSpawner(t, "bad_handshake"))
	defer b.Close()

	_, err := b.Call(context.Background(), "login", nil)
	if err == nil {
		t.Fatal("expected startup failure")
	}
}

func TestBridge_Call_DesyncForcesRestart(t *testing.T) {
	b := New(helperSpawner(t, "desync"))
	defer b.Close()

	_, err := b.Call(context.Background(), "login", nil)
	if err != ErrBridgeDesync {
		t.Fatalf("expected ErrBridgeDesync, got %v", err)
	}
	b.mu.Lock()
	started := b.started
	b.mu.Unlock()
	if started {
		t.Fatal("expected bridge to tear down its child after desync")
	}
}

func TestBridge_Login_ParsesNeedsTwoFactor(t *testing.T) {
	b := New(helperSpawner(t, "echo"))
	defer b.Close()

	result, err := b.Login(context.Background(), "+491234", "1234", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.NeedsTwoFactor {
		t.Fatal("expected NeedsTwoFactor true")
	}
}
