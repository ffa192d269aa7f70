package services

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"threadline/internal/models"
)

// timeLayout matches the export format existing report consumers parse.
const timeLayout = "2006-01-02 15:04:05"

// commentColumns is the Comment schema in declared order; the CSV header
// and every data row follow it exactly.
var commentColumns = []string{
	"id", "created_at", "updated_at", "obj_type", "obj_id", "user_id", "parent_id", "text",
}

// writeCommentsCSV writes the report with every field quoted. encoding/csv
// quotes only when it has to, which would change the artifact format
// existing consumers parse, so rows are quoted here directly. A nil parent
// renders as the empty string.
func writeCommentsCSV(w io.Writer, rows []models.Comment) error {
	if err := writeRow(w, commentColumns); err != nil {
		return err
	}
	for _, c := range rows {
		parent := ""
		if c.ParentID != nil {
			parent = strconv.FormatUint(uint64(*c.ParentID), 10)
		}
		row := []string{
			strconv.FormatUint(uint64(c.ID), 10),
			c.CreatedAt.UTC().Format(timeLayout),
			c.UpdatedAt.UTC().Format(timeLayout),
			c.ObjType,
			c.ObjID,
			c.UserID,
			parent,
			c.Text,
		}
		if err := writeRow(w, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, fields []string) error {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	_, err := fmt.Fprintln(w, strings.Join(quoted, ","))
	return err
}
