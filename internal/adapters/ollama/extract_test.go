package ollama

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestRecoverJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "clean object",
			input: `{"filters": {"genre": "rock"}, "suggestions": []}`,
		},
		{
			name:  "fenced block",
			input: "```json\n{\"filters\": {}, \"suggestions\": []}\n```",
		},
		{
			name:  "prose around the object",
			input: `Sure! Here is your playlist: {"suggestions": [{"title": "A", "artist": "B"}]} Enjoy!`,
		},
		{
			name:  "single quotes repaired",
			input: `{'filters': {'genre': 'rock'}, 'suggestions': []}`,
		},
		{
			name:  "bare keys and trailing comma repaired",
			input: `{filters: {genre: "rock",}, suggestions: [],}`,
		},
		{
			name:  "python literals repaired",
			input: `{"active": True, "missing": None}`,
		},
		{
			name:    "no json at all",
			input:   "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			raw, err := recoverJSON(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
			if !tc.wantErr && !json.Valid(raw) {
				t.Fatalf("recovered text is not valid JSON: %s", raw)
			}
		})
	}
}

func TestRecoverJSON_TakesLargestBlock(t *testing.T) {
	input := `{"small": 1} and the real one {"filters": {"genre": "rock"}, "suggestions": [{"title": "A"}]}`
	raw, err := recoverJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var parsed wireReply
	if err := json.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Filters.Genre != "rock" {
		t.Fatalf("genre = %q, want rock (largest block)", parsed.Filters.Genre)
	}
}

func TestStringList_Variants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"array", `["1980s", "1990s"]`, 2},
		{"single string", `"1980s"`, 1},
		{"comma joined", `"1980s, 1990s"`, 2},
		{"wrong shape dropped", `{"oops": true}`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var l stringList
			if err := json.Unmarshal([]byte(tc.input), &l); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(l) != tc.want {
				t.Fatalf("got %v, want %d entries", l, tc.want)
			}
		})
	}
}

func TestWireSuggestion_KeyVariants(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantTitle  string
		wantArtist string
	}{
		{"canonical keys", `{"title": "Song", "artist": "Band"}`, "Song", "Band"},
		{"song and band keys", `{"song": "Song", "band": "Band"}`, "Song", "Band"},
		{"name key", `{"name": "Song", "by": "Band"}`, "Song", "Band"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var s wireSuggestion
			if err := json.Unmarshal([]byte(tc.input), &s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Title != tc.wantTitle || s.Artist != tc.wantArtist {
				t.Fatalf("got %+v, want title=%s artist=%s", s, tc.wantTitle, tc.wantArtist)
			}
		})
	}
}

func TestWireReply_DropsEmptySuggestions(t *testing.T) {
	input := `{"suggestions": [{"title": "Real", "artist": "One"}, {"album": "only album"}]}`
	raw, err := recoverJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var wire wireReply
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("decode: %v", err)
	}
	reply := wire.toDomain()
	if len(reply.Suggestions) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(reply.Suggestions))
	}
}
