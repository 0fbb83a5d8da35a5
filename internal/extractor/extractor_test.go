package extractor

import "testing"

// An unknown schema_version must miss, and Known() must report the
// supported versions sorted for use in error messages.
func TestRegistry_KnownSchemaVersions(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Lookup("v1_nonexistent"); ok {
		t.Fatalf("expected unknown schema version to miss")
	}

	known := r.Known()
	want := []string{endpointSchemaVersion, timeseriesSchemaVersion}

	if len(known) != len(want) {
		t.Fatalf("Known() = %v, want %v", known, want)
	}

	for i := range want {
		if known[i] != want[i] {
			t.Errorf("Known()[%d] = %q, want %q", i, known[i], want[i])
		}
	}
}

func TestTimeseriesCSVExtractor_SingleChannel(t *testing.T) {
	content := []byte("channel,t,y\nA,0,1\nA,1,3\nA,2,5\nA,3,3\nA,4,1\n")

	e := NewTimeseriesCSVExtractor()

	ok, reason := e.Validate(content)
	if !ok {
		t.Fatalf("Validate() failed: %s", reason)
	}

	result := e.Extract(content)
	if !result.Success {
		t.Fatalf("Extract() failed: %s", result.Error)
	}

	yMax, ok := result.Features["channel.A.y_max"].Float64()
	if !ok || yMax != 5 {
		t.Errorf("channel.A.y_max = %v, ok=%v, want 5", yMax, ok)
	}

	numChannels, _ := result.Features["global.num_channels"].Float64()
	if numChannels != 1 {
		t.Errorf("global.num_channels = %v, want 1", numChannels)
	}
}

func TestTimeseriesCSVExtractor_MissingColumn(t *testing.T) {
	content := []byte("channel,t\nA,0\n")

	e := NewTimeseriesCSVExtractor()

	ok, reason := e.Validate(content)
	if ok {
		t.Fatalf("expected Validate() to fail on missing column")
	}

	if reason == "" {
		t.Errorf("expected a non-empty validation reason")
	}
}

func TestTimeseriesCSVExtractor_DropsInvalidRows(t *testing.T) {
	content := []byte("channel,t,y\nA,0,1\nA,bad,2\n,1,3\nA,2,5\n")

	e := NewTimeseriesCSVExtractor()

	result := e.Extract(content)
	if !result.Success {
		t.Fatalf("Extract() failed: %s", result.Error)
	}

	yMax, _ := result.Features["channel.A.y_max"].Float64()
	if yMax != 5 {
		t.Errorf("channel.A.y_max = %v, want 5 (invalid rows dropped)", yMax)
	}
}

func TestEndpointJSONExtractor_ChannelsAndMetadata(t *testing.T) {
	content := []byte(`{"channels":[{"channel":"B","value":2.5},{"channel":"A","value":1.0}],"metadata":{"batch":"x1"}}`)

	e := NewEndpointJSONExtractor()

	ok, reason := e.Validate(content)
	if !ok {
		t.Fatalf("Validate() failed: %s", reason)
	}

	result := e.Extract(content)
	if !result.Success {
		t.Fatalf("Extract() failed: %s", result.Error)
	}

	v, ok := result.Features["channel.A.endpoint_value"].Float64()
	if !ok || v != 1.0 {
		t.Errorf("channel.A.endpoint_value = %v, ok=%v, want 1.0", v, ok)
	}

	meta, ok := result.Features["metadata.batch"].String()
	if !ok || meta != "x1" {
		t.Errorf("metadata.batch = %q, ok=%v, want x1", meta, ok)
	}

	numChannels, _ := result.Features["global.num_channels"].Float64()
	if numChannels != 2 {
		t.Errorf("global.num_channels = %v, want 2", numChannels)
	}
}

func TestEndpointJSONExtractor_MissingValue(t *testing.T) {
	content := []byte(`{"channels":[{"channel":"A"}]}`)

	e := NewEndpointJSONExtractor()

	ok, reason := e.Validate(content)
	if ok {
		t.Fatalf("expected Validate() to fail on missing value")
	}

	if reason != "channels[0].value is required" {
		t.Errorf("reason = %q, want positional message", reason)
	}
}

func TestEndpointJSONExtractor_EmptyChannels(t *testing.T) {
	content := []byte(`{"channels":[]}`)

	e := NewEndpointJSONExtractor()

	ok, _ := e.Validate(content)
	if ok {
		t.Fatalf("expected Validate() to fail on empty channels array")
	}
}
