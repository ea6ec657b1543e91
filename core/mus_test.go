package core

import (
	"testing"
	"time"
)

func TestDocumentMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := Document{
		Id:         IDFromContent("form1.pdf"),
		Name:       "form1.pdf",
		StoredPath: "/var/lib/taxchat/spool/abc/form1.pdf",
		SizeBytes:  5 * 1024,
		Pages:      3,
		ChunkCount: 17,
		InsertedAt: now,
		UpdatedAt:  now.Add(time.Second),
	}

	buf := make([]byte, DocumentMUS.Size(doc))
	n := DocumentMUS.Marshal(doc, buf)
	if n != len(buf) {
		t.Fatalf("Marshal wrote %d bytes, Size reported %d", n, len(buf))
	}

	got, n, err := DocumentMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if n != len(buf) {
		t.Errorf("Unmarshal consumed %d bytes, want %d", n, len(buf))
	}
	if got.Id != doc.Id || got.Name != doc.Name || got.StoredPath != doc.StoredPath {
		t.Errorf("identity fields differ: got %+v", got)
	}
	if got.SizeBytes != doc.SizeBytes || got.Pages != doc.Pages || got.ChunkCount != doc.ChunkCount {
		t.Errorf("size fields differ: got %+v", got)
	}
	if !got.InsertedAt.Equal(doc.InsertedAt) || !got.UpdatedAt.Equal(doc.UpdatedAt) {
		t.Errorf("timestamps differ: got inserted=%v updated=%v", got.InsertedAt, got.UpdatedAt)
	}
}

func TestChunkMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	chunk := Chunk{
		Id:         42,
		DocumentId: IDFromContent("form1.pdf"),
		Source:     "form1.pdf",
		Page:       2,
		Ordinal:    7,
		Content:    "The standard deduction for single filers increased this year.",
		Vector:     []float32{0.25, -0.5, 0.125, 1.0},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	buf := make([]byte, ChunkMUS.Size(chunk))
	ChunkMUS.Marshal(chunk, buf)

	got, _, err := ChunkMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Id != chunk.Id || got.DocumentId != chunk.DocumentId {
		t.Errorf("IDs differ: got %+v", got)
	}
	if got.Source != chunk.Source || got.Page != chunk.Page || got.Ordinal != chunk.Ordinal {
		t.Errorf("position fields differ: got %+v", got)
	}
	if got.Content != chunk.Content {
		t.Errorf("content differs: got %q", got.Content)
	}
	if len(got.Vector) != len(chunk.Vector) {
		t.Fatalf("vector length %d, want %d", len(got.Vector), len(chunk.Vector))
	}
	for i := range chunk.Vector {
		if got.Vector[i] != chunk.Vector[i] {
			t.Errorf("vector[%d] = %v, want %v", i, got.Vector[i], chunk.Vector[i])
		}
	}
}

func TestChunkMUS_EmptyVector(t *testing.T) {
	chunk := Chunk{
		Id:      1,
		Source:  "form1.pdf",
		Content: "not yet embedded",
	}

	buf := make([]byte, ChunkMUS.Size(chunk))
	ChunkMUS.Marshal(chunk, buf)

	got, _, err := ChunkMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(got.Vector) != 0 {
		t.Errorf("expected empty vector, got %v", got.Vector)
	}
}

func TestChunkMUS_Truncated(t *testing.T) {
	chunk := Chunk{Id: 9, Source: "a.pdf", Content: "text", Vector: []float32{1, 2, 3}}
	buf := make([]byte, ChunkMUS.Size(chunk))
	ChunkMUS.Marshal(chunk, buf)

	if _, _, err := ChunkMUS.Unmarshal(buf[:len(buf)/2]); err == nil {
		t.Errorf("Unmarshal() of truncated buffer succeeded, want error")
	}
}

func TestCheckpointMUS_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	cp := Checkpoint{
		ProcessorType: "reindex",
		LastID:        12345,
		UpdatedAt:     now,
	}

	buf := make([]byte, CheckpointMUS.Size(cp))
	CheckpointMUS.Marshal(cp, buf)

	got, _, err := CheckpointMUS.Unmarshal(buf)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.ProcessorType != cp.ProcessorType || got.LastID != cp.LastID || !got.UpdatedAt.Equal(cp.UpdatedAt) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, cp)
	}
}

func TestIDMUS_RoundTrip(t *testing.T) {
	for _, id := range []ID{0, 1, 255, 1 << 20, 1<<63 + 7} {
		buf := make([]byte, IDMUS.Size(id))
		IDMUS.Marshal(id, buf)
		got, _, err := IDMUS.Unmarshal(buf)
		if err != nil {
			t.Fatalf("Unmarshal(%d) error: %v", id, err)
		}
		if got != id {
			t.Errorf("round trip of %d yielded %d", id, got)
		}
	}
}
