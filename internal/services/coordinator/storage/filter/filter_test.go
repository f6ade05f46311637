package filter

import (
	"strings"
	"testing"
	"time"
)

func TestParseAuditFilterEmpty(t *testing.T) {
	cond, err := ParseAuditFilter("  ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cond.Empty() {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseAuditFilterEquality(t *testing.T) {
	cond, err := ParseAuditFilter(`type = "transaction.signed"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "event_type = ?" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 1 || cond.Params[0] != "transaction.signed" {
		t.Fatalf("params = %v", cond.Params)
	}
}

func TestParseAuditFilterConjunction(t *testing.T) {
	cond, err := ParseAuditFilter(`actor_id = "bob" AND seq > 2`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "(actor_id = ? AND seq > ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 || cond.Params[0] != "bob" || cond.Params[1] != int64(2) {
		t.Fatalf("params = %v", cond.Params)
	}
}

func TestParseAuditFilterDisjunction(t *testing.T) {
	cond, err := ParseAuditFilter(`to_status = "APPROVED" OR to_status = "EXECUTED"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !strings.Contains(cond.Clause, " OR ") || len(cond.Params) != 2 {
		t.Fatalf("condition = %+v", cond)
	}
}

func TestParseAuditFilterRejectsUnknownField(t *testing.T) {
	if _, err := ParseAuditFilter(`payload = "x"`); err == nil {
		t.Fatal("expected unknown field error")
	}
}

func TestParseAuditFilterNegation(t *testing.T) {
	cond, err := ParseAuditFilter(`NOT type = "transaction.signed"`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "NOT (event_type = ?)" {
		t.Fatalf("clause = %q", cond.Clause)
	}
}

func TestParseAuditFilterTimestamp(t *testing.T) {
	cond, err := ParseAuditFilter(`ts >= timestamp("2026-03-03T09:00:00Z")`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cond.Clause != "timestamp >= ?" {
		t.Fatalf("clause = %q", cond.Clause)
	}
	want := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC).UnixMilli()
	if len(cond.Params) != 1 || cond.Params[0] != want {
		t.Fatalf("params = %v, want [%d]", cond.Params, want)
	}
}

func TestParseAuditFilterRejectsTypeMismatch(t *testing.T) {
	if _, err := ParseAuditFilter(`seq = "three"`); err == nil {
		t.Fatal("expected type error")
	}
	if _, err := ParseAuditFilter(`type = `); err == nil {
		t.Fatal("expected syntax error")
	}
}
