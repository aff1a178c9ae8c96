package core

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/QRBulk/internal/mapping"
	"github.com/JonMunkholm/QRBulk/internal/render"
	"github.com/JonMunkholm/QRBulk/internal/tabular"
)

const peopleCSV = "Name,Surname,Link\nAnn,Lee,a.example\n,,\nBob,,\n"

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(Options{
		DownloadRetention: time.Minute,
		SessionTTL:        time.Hour,
	}, nil)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestService_CreateSession(t *testing.T) {
	svc, _ := newTestService(t)

	info, err := svc.CreateSession(context.Background(), "people.csv", []byte(peopleCSV))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if info.ID == "" || info.Kind != tabular.KindCSV || info.Rows != 3 {
		t.Errorf("info = %+v", info)
	}
	if !info.Ready {
		t.Error("auto mapping should bind the Link column")
	}
	if got := info.Mapping.Get(mapping.SlotLastName); got != mapping.Column("Surname") {
		t.Errorf("lastName binding = %+v", got)
	}
	if info.Sample["Name"] != "Ann" {
		t.Errorf("Sample = %v", info.Sample)
	}
}

func TestService_CreateSession_BadFile(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateSession(context.Background(), "people.pdf", []byte("x"))
	if !errors.Is(err, tabular.ErrUnsupportedFormat) {
		t.Errorf("err = %v", err)
	}
	if len(svc.sessions) != 0 {
		t.Error("failed load created a session")
	}
}

func TestService_LoadFile_KeepsStateOnFailure(t *testing.T) {
	svc, _ := newTestService(t)
	info, err := svc.CreateSession(context.Background(), "people.csv", []byte(peopleCSV))
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := svc.LoadFile(info.ID, "empty.csv", nil); err == nil {
		t.Fatal("expected error for empty file")
	}

	again, err := svc.Session(info.ID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if got := again.Info(); got.FileName != "people.csv" || got.Rows != 3 {
		t.Errorf("state changed after failed load: %+v", got)
	}
}

func TestService_SetMapping(t *testing.T) {
	svc, _ := newTestService(t)
	info, _ := svc.CreateSession(context.Background(), "people.csv", []byte(peopleCSV))

	bad := mapping.New().Set(mapping.SlotURL, mapping.Column("Missing"))
	if _, err := svc.SetMapping(info.ID, bad); err == nil {
		t.Error("expected error for unknown column")
	}

	m := mapping.New().Set(mapping.SlotURL, mapping.Custom("https://fixed.example"))
	got, err := svc.SetMapping(info.ID, m)
	if err != nil {
		t.Fatalf("SetMapping: %v", err)
	}
	if !got.Ready || got.Mapping.Get(mapping.SlotFirstName).IsSet() {
		t.Errorf("mapping = %+v", got.Mapping)
	}

	if _, err := svc.SetMapping("nope", m); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown session err = %v", err)
	}
}

func TestService_Preview(t *testing.T) {
	svc, _ := newTestService(t)
	info, _ := svc.CreateSession(context.Background(), "people.csv", []byte(peopleCSV))

	svg, err := svc.Preview(context.Background(), info.ID, svc.BaseStyle())
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if !bytes.Contains(svg, []byte(`width="300"`)) {
		t.Errorf("preview not at preview size: %.200s", svg)
	}

	noLink := "Name,Link\nBob,\n"
	info2, _ := svc.CreateSession(context.Background(), "nolink.csv", []byte(noLink))
	if _, err := svc.Preview(context.Background(), info2.ID, svc.BaseStyle()); !errors.Is(err, ErrNoPreview) {
		t.Errorf("err = %v, want ErrNoPreview", err)
	}
}

func TestService_GenerateAndDownload(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()
	info, _ := svc.CreateSession(ctx, "people.csv", []byte(peopleCSV))

	report, err := svc.Generate(ctx, info.ID, svc.BaseStyle(), render.FormatSVG)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if report.Generated != 1 || report.Skipped != 1 || len(report.Errors) != 1 {
		t.Errorf("report = %+v", report)
	}

	dl, err := svc.TakeDownload(report.RunID)
	if err != nil {
		t.Fatalf("TakeDownload: %v", err)
	}
	if dl.Name != report.ArchiveName {
		t.Errorf("Name = %q, want %q", dl.Name, report.ArchiveName)
	}
	entries := readZip(t, dl.Data)
	if svg, ok := entries["Ann_Lee.svg"]; !ok || !bytes.HasPrefix(svg, []byte("<?xml")) {
		t.Errorf("archive entries = %v", keys(entries))
	}

	if _, err := svc.TakeDownload(report.RunID); !errors.Is(err, ErrDownloadNotFound) {
		t.Errorf("second take err = %v", err)
	}

	report2, err := svc.Generate(ctx, info.ID, svc.BaseStyle(), render.FormatSVG)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	*now = now.Add(2 * time.Minute)
	if _, err := svc.TakeDownload(report2.RunID); !errors.Is(err, ErrDownloadNotFound) {
		t.Errorf("expired take err = %v", err)
	}
}

func TestService_GenerateRejectsLargeExport(t *testing.T) {
	svc := NewService(Options{MaxExportSize: 500}, nil)
	info, _ := svc.CreateSession(context.Background(), "people.csv", []byte(peopleCSV))

	style := svc.BaseStyle()
	style.ExportSize = 1000
	_, err := svc.Generate(context.Background(), info.ID, style, render.FormatPNG)
	if !errors.Is(err, render.ErrInvalidStyle) {
		t.Errorf("err = %v", err)
	}
}

func TestService_Sweep(t *testing.T) {
	svc, now := newTestService(t)
	info, _ := svc.CreateSession(context.Background(), "people.csv", []byte(peopleCSV))

	*now = now.Add(30 * time.Minute)
	if n, _ := svc.Sweep(); n != 0 {
		t.Fatalf("swept %d live sessions", n)
	}
	if _, err := svc.Session(info.ID); err != nil {
		t.Fatalf("Session: %v", err)
	}

	*now = now.Add(2 * time.Hour)
	if n, _ := svc.Sweep(); n != 1 {
		t.Errorf("swept %d sessions, want 1", n)
	}
	if _, err := svc.Session(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestService_RenderSingle(t *testing.T) {
	svc, _ := newTestService(t)

	out, err := svc.RenderSingle(context.Background(), svc.BaseStyle(), "plain text", render.FormatSVG)
	if err != nil {
		t.Fatalf("RenderSingle: %v", err)
	}
	if !bytes.Contains(out, []byte("<svg")) {
		t.Error("output is not svg")
	}

	if _, err := svc.RenderSingle(context.Background(), svc.BaseStyle(), "", render.FormatSVG); !errors.Is(err, render.ErrNoOutput) {
		t.Errorf("empty data err = %v", err)
	}
}

func TestService_Shutdown(t *testing.T) {
	svc, _ := newTestService(t)
	info, _ := svc.CreateSession(context.Background(), "people.csv", []byte(peopleCSV))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := svc.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := svc.Session(info.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session survived shutdown: %v", err)
	}
}
