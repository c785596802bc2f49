package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	Reset()
	if Ping() != DefaultPing || Short() != DefaultShort || Medium() != DefaultMedium || Long() != DefaultLong {
		t.Errorf("Current() = %+v, want defaults", Current())
	}
}

func TestConfigure_KeepsUnsetValues(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Short: time.Second})
	if Short() != time.Second {
		t.Errorf("Short() = %v, want 1s", Short())
	}
	if Medium() != DefaultMedium {
		t.Errorf("Medium() = %v, want default", Medium())
	}
}

func TestConfigureFromEnv(t *testing.T) {
	t.Cleanup(Reset)
	t.Setenv(EnvPrefix+"MEDIUM", "3s")
	t.Setenv(EnvPrefix+"LONG", "bogus")
	t.Setenv(EnvPrefix+"PING", "-1s")

	if n := ConfigureFromEnv(); n != 1 {
		t.Errorf("ConfigureFromEnv() = %d, want 1", n)
	}
	if Medium() != 3*time.Second {
		t.Errorf("Medium() = %v, want 3s", Medium())
	}
	if Long() != DefaultLong || Ping() != DefaultPing {
		t.Error("invalid values should be ignored")
	}
}

func TestShortCtx(t *testing.T) {
	t.Cleanup(Reset)
	Configure(Config{Short: 50 * time.Millisecond})

	ctx, cancel := ShortCtx(context.Background())
	defer cancel()
	dl, ok := ctx.Deadline()
	if !ok || time.Until(dl) > 50*time.Millisecond {
		t.Errorf("deadline = %v, %v", dl, ok)
	}
}

func TestWithTimeout_Expires(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.NewNop(), "test")
	<-ctx.Done()
	cancel()
	if ctx.Err() != context.DeadlineExceeded {
		t.Errorf("ctx.Err() = %v", ctx.Err())
	}
}
