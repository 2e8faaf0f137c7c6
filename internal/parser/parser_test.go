package parser

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SolarFeed/internal/model"
)

const (
	primaryLine = "Voltage: 1.81 V | Current: 0.41 A | Power: 0.74 W"
	lightLine   = "Light (Raw ADC): 11"
)

func TestParse_CSV(t *testing.T) {
	p := New()

	r, out, err := p.Parse("12.1,4.9,59.29,512")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, model.Reading{Voltage: 12.1, Current: 4.9, Power: 59.29, LightRaw: 512}, r)
	assert.Equal(t, Idle, p.State())
}

func TestParse_CSVIsIdempotent(t *testing.T) {
	p := New()
	line := "12.1,4.9,59.29,512"

	first, out1, err := p.Parse(line)
	require.NoError(t, err)
	second, out2, err := p.Parse(line)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Complete, out1)
	assert.Equal(t, Complete, out2)
	assert.Equal(t, Idle, p.State())
}

func TestParse_PrimaryThenLight(t *testing.T) {
	p := New()

	partial, out, err := p.Parse(primaryLine)
	require.NoError(t, err)
	assert.Equal(t, Partial, out)
	assert.Equal(t, model.Reading{Voltage: 1.81, Current: 0.41, Power: 0.74, LightRaw: 0}, partial)
	assert.Equal(t, AwaitingLight, p.State())
	pending, ok := p.Pending()
	require.True(t, ok)
	assert.Equal(t, partial, pending)

	done, out, err := p.Parse(lightLine)
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, model.Reading{Voltage: 1.81, Current: 0.41, Power: 0.74, LightRaw: 11}, done)
	assert.Equal(t, Idle, p.State())
	_, ok = p.Pending()
	assert.False(t, ok)
}

func TestParse_PartialIsNotAliasedByCompletion(t *testing.T) {
	p := New()
	partial, _, err := p.Parse(primaryLine)
	require.NoError(t, err)
	_, _, err = p.Parse(lightLine)
	require.NoError(t, err)

	assert.Equal(t, 0, partial.LightRaw)
}

func TestParse_OrphanLight(t *testing.T) {
	p := New()

	_, out, err := p.Parse(lightLine)
	require.NoError(t, err)
	assert.Equal(t, None, out)
	assert.Equal(t, Idle, p.State())
}

func TestParse_PrimarySupersedesPending(t *testing.T) {
	p := New()
	_, _, err := p.Parse(primaryLine)
	require.NoError(t, err)

	_, out, err := p.Parse("Voltage: 2.00 V | Current: 1.00 A | Power: 2.00 W")
	require.NoError(t, err)
	assert.Equal(t, Partial, out)

	r, out, err := p.Parse("Light (Raw ADC): 700")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, model.Reading{Voltage: 2, Current: 1, Power: 2, LightRaw: 700}, r)
}

func TestParse_CSVClearsPending(t *testing.T) {
	p := New()
	_, _, err := p.Parse(primaryLine)
	require.NoError(t, err)

	_, out, err := p.Parse("1,2,3,4")
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, Idle, p.State())

	// the light line no longer has anything to complete
	_, out, err = p.Parse(lightLine)
	require.NoError(t, err)
	assert.Equal(t, None, out)
}

func TestParse_LeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"empty", "", false},
		{"whitespace", "   \t ", false},
		{"unrecognized", "booting sensor firmware v1.2", false},
		{"non-numeric voltage", "Voltage: abc V | Current: 0.4 A | Power: 1 W", false},
		{"malformed voltage token", "Voltage: 1.2.3 V | Current: 0.4 A | Power: 1 W", true},
		{"light without digits", "Light (Raw ADC): n/a", false},
		{"short csv", "1.0,2.0,3.0", false},
		{"bad csv token", "1.0,x,3.0,4", true},
		{"non-finite csv", "NaN,1,1,1", true},
		{"infinite light", "1,1,1,+Inf", true},
		{"light beyond int range", "12.1,4.9,59.29,1e20", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			_, _, err := p.Parse(primaryLine)
			require.NoError(t, err)
			before, _ := p.Pending()

			r, out, err := p.Parse(tt.line)

			assert.Equal(t, None, out)
			assert.Equal(t, model.Reading{}, r)
			if tt.wantErr {
				var perr *Error
				require.True(t, errors.As(err, &perr), "want *parser.Error, got %v", err)
				assert.Equal(t, tt.line, perr.Line)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, AwaitingLight, p.State())
			after, _ := p.Pending()
			assert.Equal(t, before, after)
		})
	}
}

func TestParse_HugeLightIsRejected(t *testing.T) {
	p := New()
	r, out, err := p.Parse("12.1,4.9,59.29,1e20")
	assert.Equal(t, None, out)
	assert.Equal(t, model.Reading{}, r)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, model.ErrOutOfRange)
}

func TestParse_MalformedCSVFromIdle(t *testing.T) {
	p := New()
	_, out, err := p.Parse("12.1,abc,59.29,512")
	assert.Equal(t, None, out)
	assert.Error(t, err)
	assert.Equal(t, Idle, p.State())
}

func TestParseCSV(t *testing.T) {
	tests := []struct {
		line  string
		want  model.Reading
		ok    bool
		isErr bool
	}{
		{"12.1,4.9,59.29,512", model.Reading{Voltage: 12.1, Current: 4.9, Power: 59.29, LightRaw: 512}, true, false},
		{" 12.1 , 4.9 ,59.29, 512.9 ", model.Reading{Voltage: 12.1, Current: 4.9, Power: 59.29, LightRaw: 512}, true, false},
		{"1,2,3,4,extra,fields", model.Reading{Voltage: 1, Current: 2, Power: 3, LightRaw: 4}, true, false},
		{"1,2,3,-7.9", model.Reading{Voltage: 1, Current: 2, Power: 3, LightRaw: -7}, true, false},
		{"1,2", model.Reading{}, false, false},
		{"1,2,3,", model.Reading{}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok, err := ParseCSV(tt.line)
			if tt.isErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatRoundTrip(t *testing.T) {
	r := model.Reading{Voltage: 12.34, Current: 5.06, Power: 62.44, LightRaw: 870}

	p := New()
	got, out, err := p.Parse(FormatCSV(r))
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, r, got)

	primary, light := FormatHuman(r)
	_, out, err = p.Parse(primary)
	require.NoError(t, err)
	assert.Equal(t, Partial, out)
	got, out, err = p.Parse(light)
	require.NoError(t, err)
	assert.Equal(t, Complete, out)
	assert.Equal(t, r, got)
}

func TestStateAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_light", AwaitingLight.String())
	assert.Equal(t, "partial", Partial.String())
	assert.Equal(t, "outcome(9)", Outcome(9).String())
}

func BenchmarkParse_HumanBlock(b *testing.B) {
	p := New()
	for i := 0; i < b.N; i++ {
		_, _, _ = p.Parse(primaryLine)
		_, _, _ = p.Parse("Light (Raw ADC): " + strconv.Itoa(i%1024))
	}
}
