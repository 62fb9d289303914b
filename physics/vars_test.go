package physics

import "testing"

func TestVars(t *testing.T) {
	v := Vars{}
	if v.Get("missing") != 0 {
		t.Fatalf("missing key must read 0")
	}

	v.Set("score", 2)
	if got := v.Add("score", 3); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
	if got := v.Mul("score", 2); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
	if got := v.Add("fresh", 1); got != 1 {
		t.Fatalf("add on missing key must start at 0, got %v", got)
	}

	v.Set(CycleKey("#f00,#0f0"), 1)
	user := v.User()
	if _, ok := user[CycleKey("#f00,#0f0")]; ok {
		t.Fatalf("reserved key leaked into User()")
	}
	if user.Get("score") != 10 {
		t.Fatalf("user key missing from User()")
	}

	clone := v.Clone()
	clone.Set("score", 0)
	if v.Get("score") != 10 {
		t.Fatalf("Clone must not alias")
	}
}

func TestIsReserved(t *testing.T) {
	cases := map[string]bool{
		"__cycle:red": true,
		"__x":         true,
		"_x":          false,
		"score":       false,
	}
	for name, want := range cases {
		if got := IsReserved(name); got != want {
			t.Fatalf("IsReserved(%q) = %v, want %v", name, got, want)
		}
	}
}
