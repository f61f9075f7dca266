package pm1sdk

import (
	"math"
	"testing"
)

func TestGetOdometryWithNoSessionIsNaN(t *testing.T) {
	mu.Lock()
	session = nil
	mu.Unlock()

	p := GetOdometry()
	if !math.IsNaN(p.S) || !math.IsNaN(p.X) || !math.IsNaN(p.Y) || !math.IsNaN(p.Theta) ||
		!math.IsNaN(p.Vx) || !math.IsNaN(p.Vy) || !math.IsNaN(p.W) {
		t.Fatalf("expected an all-NaN pose with no session, got %+v", p)
	}
}

func TestCheckStateNotInitialized(t *testing.T) {
	mu.Lock()
	session = nil
	locked = false
	mu.Unlock()

	err := CheckState()
	ce, ok := AsChassisError(err)
	if !ok || ce.Error() != "chassis has not been initialized" {
		t.Fatalf("expected NotInitialized error, got %v", err)
	}
}

func TestLockPreventsDrive(t *testing.T) {
	mu.Lock()
	session = nil
	mu.Unlock()

	Lock()
	defer Unlock()
	if !IsLocked() {
		t.Fatalf("IsLocked() = false after Lock()")
	}

	err := Drive(1, 0)
	if err == nil {
		t.Fatalf("expected an error driving with no session/locked chassis")
	}
}

func TestUnlockClearsLock(t *testing.T) {
	Lock()
	Unlock()
	if IsLocked() {
		t.Fatalf("IsLocked() = true after Unlock()")
	}
}
