package finance

import (
	"testing"
)

func TestQuickAddParse_ExpensesByDefault(t *testing.T) {
	parser := NewQuickAddParser()

	tests := []struct {
		input     string
		wantDesc  string
		wantPence int64
		wantType  string
	}{
		// Expenses (default)
		{"minibus fuel £42.50", "Minibus fuel", 4250, TypeExpense},
		{"£120 bunkhouse deposit", "Bunkhouse deposit", 12000, TypeExpense},
		{"crampon hire 12,50", "Crampon hire", 1250, TypeExpense},
		{"GBP 30 map set", "Map set", 3000, TypeExpense},
		{"hut fee 8", "Hut fee", 800, TypeExpense},

		// Income (with "+" prefix)
		{"+membership 25", "Membership", 2500, TypeIncome},
		{"+ grant 1500", "Grant", 150000, TypeIncome},
		{"+£45 welsh 3000s deposit J Smith", "Welsh 3000s deposit J Smith", 4500, TypeIncome},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			entry := parser.Parse(tt.input)

			if entry.Description != tt.wantDesc {
				t.Errorf("Parse(%q).Description = %q, want %q",
					tt.input, entry.Description, tt.wantDesc)
			}
			if entry.AmountPence != tt.wantPence {
				t.Errorf("Parse(%q).AmountPence = %d, want %d",
					tt.input, entry.AmountPence, tt.wantPence)
			}
			if entry.Type != tt.wantType {
				t.Errorf("Parse(%q).Type = %q, want %q",
					tt.input, entry.Type, tt.wantType)
			}
		})
	}
}

func TestQuickAddParse_AmountSelection(t *testing.T) {
	parser := NewQuickAddParser()

	// "3000s" in the trip name must not be read as the amount
	entry := parser.Parse("welsh 3000s deposit 120")

	if entry.AmountPence != 12000 {
		t.Errorf("AmountPence = %d, want 12000", entry.AmountPence)
	}
	if entry.Description != "Welsh 3000s deposit" {
		t.Errorf("Description = %q, want %q", entry.Description, "Welsh 3000s deposit")
	}

	// A currency-marked amount wins even when a bare number follows it
	entry = parser.Parse("£45 welsh 3000s deposit")

	if entry.AmountPence != 4500 {
		t.Errorf("AmountPence = %d, want 4500", entry.AmountPence)
	}
	if entry.Description != "Welsh 3000s deposit" {
		t.Errorf("Description = %q, want %q", entry.Description, "Welsh 3000s deposit")
	}
}

func TestQuickAddParse_RoundsToPence(t *testing.T) {
	parser := NewQuickAddParser()

	// 19.99 * 100 is 1998.999... as a float; the parser must round, not truncate
	entry := parser.Parse("kit wash 19.99")

	if entry.AmountPence != 1999 {
		t.Errorf("AmountPence = %d, want 1999", entry.AmountPence)
	}
}

func TestQuickAddParse_EdgeCases(t *testing.T) {
	parser := NewQuickAddParser()

	// Empty input
	entry := parser.Parse("")
	if entry.AmountPence != 0 {
		t.Errorf("empty input should have 0 amount, got %d", entry.AmountPence)
	}

	// No amount - just description
	entry = parser.Parse("just a note")
	if entry.AmountPence != 0 {
		t.Errorf("no amount should have 0 amount, got %d", entry.AmountPence)
	}
	if entry.Description != "Just a note" {
		t.Errorf("description mismatch: got %q, want %q", entry.Description, "Just a note")
	}

	// Amount only - no description
	entry = parser.Parse("£25")
	if entry.AmountPence != 2500 {
		t.Errorf("AmountPence = %d, want 2500", entry.AmountPence)
	}
	if entry.Description != "" {
		t.Errorf("description should be empty, got %q", entry.Description)
	}

	// Date defaults to today
	entry = parser.Parse("minibus fuel 42.50")
	if entry.OccurredOn.IsZero() {
		t.Error("OccurredOn should default to now")
	}
}
