package handlers

import (
	"bytes"
	"mime/multipart"
	"testing"
)

func TestParseCustomersCSV(t *testing.T) {
	content := "name,email,phone,street,city,state,zip,lat,lng\n" +
		"Acme Water,ops@acme.test,555-0100,100 Main St,Austin,TX,78701,30.27,-97.74\n" +
		"Plain Pump,,,45 Oak Ave,Dallas,TX,75201,,\n"
	fh := makeMultipartFile(t, "file", "customers.csv", content)

	customers, errs := parseCustomersCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(customers) != 2 {
		t.Fatalf("expected 2 customers, got %d", len(customers))
	}
	if customers[0].Email != "ops@acme.test" {
		t.Fatalf("expected lowercased email, got %q", customers[0].Email)
	}
	if customers[0].Lat == nil || *customers[0].Lat != 30.27 {
		t.Fatalf("expected parsed latitude, got %v", customers[0].Lat)
	}
	if customers[1].Lat != nil || customers[1].Lng != nil {
		t.Fatalf("expected nil coordinates for row without them")
	}
}

func TestParseCustomersCSVHeaderAliases(t *testing.T) {
	content := "customer,address,town,region,postcode\n" +
		"Alias Co,9 Elm St,Houston,TX,77001\n"
	fh := makeMultipartFile(t, "file", "customers.csv", content)

	customers, errs := parseCustomersCSV(fh)
	if len(errs) > 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if len(customers) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(customers))
	}
	c := customers[0]
	if c.Name != "Alias Co" || c.Street != "9 Elm St" || c.City != "Houston" || c.State != "TX" || c.Zip != "77001" {
		t.Fatalf("alias headers not mapped: %+v", c)
	}
}

func TestParseCustomersCSVSkipsIncompleteRows(t *testing.T) {
	content := "name,street,city\n" +
		"Good Co,1 First St,Austin\n" +
		",2 Second St,Austin\n" +
		"No Street Co,,Austin\n"
	fh := makeMultipartFile(t, "file", "customers.csv", content)

	customers, errs := parseCustomersCSV(fh)
	if len(customers) != 1 {
		t.Fatalf("expected 1 valid customer, got %d", len(customers))
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 line errors, got %v", errs)
	}
}

func TestParseCoordsRange(t *testing.T) {
	if _, _, ok := parseCoords("91", "0"); ok {
		t.Fatalf("latitude above 90 must be rejected")
	}
	if _, _, ok := parseCoords("0", "-181"); ok {
		t.Fatalf("longitude below -180 must be rejected")
	}
	lat, lng, ok := parseCoords("30.5", "-97.1")
	if !ok || lat != 30.5 || lng != -97.1 {
		t.Fatalf("valid coordinates rejected: %v %v %v", lat, lng, ok)
	}
}

func makeMultipartFile(t *testing.T, fieldName, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(int64(buf.Len()))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	files := form.File[fieldName]
	if len(files) == 0 {
		t.Fatalf("no file headers found")
	}
	return files[0]
}
