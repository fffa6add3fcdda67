package mssql

import (
	"strings"
	"testing"
)

func TestBuildBulkInsertSQL(t *testing.T) {
	q, args, err := buildBulkInsertSQL(
		"Orders",
		[]string{"OrderID", "CustomerID"},
		[][]any{
			{"A1", int64(1)},
			{"A2", int64(2)},
		},
	)
	if err != nil {
		t.Fatalf("buildBulkInsertSQL: %v", err)
	}

	want := "INSERT INTO [Orders] ([OrderID], [CustomerID]) VALUES (@p1, @p2), (@p3, @p4)"
	if q != want {
		t.Errorf("sql = %q\nwant %q", q, want)
	}
	if len(args) != 4 {
		t.Errorf("args = %d, want 4", len(args))
	}
}

func TestBuildInsertNotExistsSQL(t *testing.T) {
	q, args, err := buildInsertNotExistsSQL(
		"Products",
		[]string{"ProductID", "ProductName"},
		[][]any{{"S1", "JNE-1"}},
		[]string{"ProductID"},
	)
	if err != nil {
		t.Fatalf("buildInsertNotExistsSQL: %v", err)
	}

	for _, part := range []string{
		"INSERT INTO [Products] ([ProductID], [ProductName])",
		"SELECT v.[ProductID], v.[ProductName] FROM (VALUES (@p1, @p2)) AS v([ProductID], [ProductName])",
		"WHERE NOT EXISTS (SELECT 1 FROM [Products] t WHERE t.[ProductID] = v.[ProductID])",
	} {
		if !strings.Contains(q, part) {
			t.Errorf("sql missing %q:\n%s", part, q)
		}
	}
	if len(args) != 2 {
		t.Errorf("args = %d, want 2", len(args))
	}
}

func TestBuildInsertNotExistsSQLUnknownDedupeColumn(t *testing.T) {
	_, _, err := buildInsertNotExistsSQL("t", []string{"a"}, [][]any{{"x"}}, []string{"missing"})
	if err == nil {
		t.Fatalf("expected error for unknown dedupe column")
	}
}

func TestBuildBulkInsertSQLRowLengthMismatch(t *testing.T) {
	_, _, err := buildBulkInsertSQL("t", []string{"a", "b"}, [][]any{{"only"}})
	if err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestTableIdentSchemaQualified(t *testing.T) {
	if got := tableIdent("dbo.Orders"); got != "[dbo].[Orders]" {
		t.Errorf("tableIdent = %q", got)
	}
	if got := tableIdent("Orders"); got != "[Orders]" {
		t.Errorf("tableIdent = %q", got)
	}
}
