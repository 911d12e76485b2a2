package proximity

import (
	"sort"
	"testing"
)

func changeMap(changes []Change) map[string]string {
	m := make(map[string]string, len(changes))
	for _, c := range changes {
		m[c.UserID] = c.GroupID
	}
	return m
}

func TestInsertSoloHasNoGroup(t *testing.T) {
	idx := New(DefaultRadius)
	changes := idx.Insert("a", 0, 0)
	if len(changes) != 1 || changes[0].GroupID != None {
		t.Fatalf("expected solo insert to report None, got %+v", changes)
	}
	if idx.GroupOf("a") != None {
		t.Fatalf("expected GroupOf to be None")
	}
}

func TestInsertWithinRadiusGroups(t *testing.T) {
	idx := New(DefaultRadius)
	idx.Insert("b", 100, 100)
	changes := idx.Insert("a", 120, 100) // distance 20 <= 150
	got := changeMap(changes)
	if got["a"] != "a" || got["b"] != "a" {
		t.Fatalf("expected both players grouped under lex-smallest id, got %+v", got)
	}
	if idx.GroupOf("a") != "a" || idx.GroupOf("b") != "a" {
		t.Fatalf("unexpected group assignment")
	}
}

func TestMoveOutOfRangeUngroups(t *testing.T) {
	idx := New(DefaultRadius)
	idx.Insert("a", 100, 100)
	idx.Insert("b", 120, 100)
	changes := idx.Move("b", 500, 100)
	got := changeMap(changes)
	if got["a"] != None || got["b"] != None {
		t.Fatalf("expected both players to lose their group, got %+v", got)
	}
}

func TestRemoveLastMemberLeavesNoGroup(t *testing.T) {
	idx := New(DefaultRadius)
	idx.Insert("a", 0, 0)
	idx.Insert("b", 10, 10)
	changes := idx.Remove("b")
	got := changeMap(changes)
	if got["a"] != None {
		t.Fatalf("expected remaining player to lose its group, got %+v", got)
	}
	if idx.GroupOf("b") != None {
		t.Fatalf("expected removed player to report None")
	}
}

func TestTransitiveComponent(t *testing.T) {
	idx := New(DefaultRadius)
	// a-b within radius, b-c within radius, a-c not directly within radius.
	idx.Insert("a", 0, 0)
	idx.Insert("b", 140, 0)
	idx.Insert("c", 280, 0)

	if idx.GroupOf("a") != idx.GroupOf("c") {
		t.Fatalf("expected transitive closure to group a and c together")
	}
	if idx.GroupOf("a") == None {
		t.Fatalf("expected a non-none group for the connected triple")
	}
}

func TestNoChangeWhenGroupStable(t *testing.T) {
	idx := New(DefaultRadius)
	idx.Insert("a", 0, 0)
	idx.Insert("b", 10, 0)
	changes := idx.Move("a", 5, 5)
	if len(changes) != 0 {
		t.Fatalf("expected no changes for a move that preserves grouping, got %+v", changes)
	}
}

func TestRecomputeIsDeterministic(t *testing.T) {
	idx := New(DefaultRadius)
	ids := []string{"z", "m", "a", "q"}
	for i, id := range ids {
		idx.Insert(id, float64(i)*10, 0)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if idx.GroupOf(id) != "a" {
			t.Fatalf("expected lexicographically smallest id as representative, got %s for %s", idx.GroupOf(id), id)
		}
	}
}
