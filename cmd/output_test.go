package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"1,2", " 3 ", ""})
	if err != nil {
		t.Fatalf("parseIDs() error = %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("parseIDs() = %v", ids)
	}

	if _, err := parseIDs([]string{"1,x"}); err == nil {
		t.Fatal("parseIDs() accepted a non-numeric id")
	}
}

func TestConsignmentSchemaCommand(t *testing.T) {
	var out bytes.Buffer
	consignmentSchemaCmd.SetOut(&out)
	defer consignmentSchemaCmd.SetOut(nil)

	if err := consignmentSchemaCmd.RunE(consignmentSchemaCmd, nil); err != nil {
		t.Fatalf("schema RunE() error = %v", err)
	}
	if !strings.Contains(out.String(), `"consignment_id"`) {
		t.Fatalf("schema output missing consignment_id: %s", out.String())
	}
}
