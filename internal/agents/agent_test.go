package agents

import (
	"testing"

	"github.com/talgya/worldhistory/internal/rng"
)

func TestNewLeaderIsReproducible(t *testing.T) {
	s := rng.New(11)
	a := NewLeader(s, 1234, 36500)
	b := NewLeader(s, 1234, 36500)
	if *a != *b {
		t.Fatalf("leaders differ: %+v vs %+v", a, b)
	}
	if a.Name == "" {
		t.Fatalf("leader has no name")
	}
	if age := a.Age(36500); age < 16 || age > 40 {
		t.Fatalf("age out of range: %d", age)
	}
	if a.Charisma < 0 || a.Charisma > 1 || a.Wisdom < 0 || a.Wisdom > 1 {
		t.Fatalf("attributes out of range: %+v", a)
	}
}

func TestNewLeaderVariesByDate(t *testing.T) {
	s := rng.New(11)
	same := 0
	for d := int64(0); d < 50; d++ {
		if NewLeader(s, 9, d*365).Name == NewLeader(s, 9, (d+1)*365).Name {
			same++
		}
	}
	if same > 10 {
		t.Fatalf("names barely vary: %d repeats", same)
	}
}
