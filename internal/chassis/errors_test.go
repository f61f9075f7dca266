package chassis

import "testing"

func TestErrorPrefixes(t *testing.T) {
	cases := []struct {
		err  *Error
		want string
	}{
		{ErrIO("open %s: boom", "/dev/ttyUSB0"), "IO Exception: open /dev/ttyUSB0: boom"},
		{ErrNotInitialized(), "chassis has not been initialized"},
		{ErrInfiniteAction(), "this action will never complete"},
		{ErrActionCanceled(), "action canceled"},
		{ErrNotAPm1Chassis(), "not a pm1 chassis"},
		{ErrChassisLocked(), "chassis has been locked"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Fatalf("Error() = %q, want %q", got, c.want)
		}
	}
}

func TestIllegalArgumentCarriesCustomMessage(t *testing.T) {
	err := ErrIllegalArgument("target state should greater than 0")
	if got := err.Error(); got != "target state should greater than 0" {
		t.Fatalf("Error() = %q", got)
	}
}
