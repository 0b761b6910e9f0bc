package infer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XC-/bluing"
	"github.com/XC-/bluing/oui"
)

func huaweiOnly() *oui.Table {
	return oui.NewTable([]oui.Entry{{Organization: "Huawei", Prefix: 0x247A99}})
}

func addrs(aa []bluing.BDAddr) []string {
	s := []string{}
	for _, a := range aa {
		s = append(s, a.String())
	}
	return s
}

func TestInferCandidates(t *testing.T) {
	obs, err := ParseObservation("4C:45:C3")
	require.NoError(t, err)
	e := &Engine{Table: huaweiOnly()}

	assert.Equal(t, []string{"24:7A:99:4C:45:C3"}, addrs(e.InferCandidates(obs, "Huawei")))
	assert.Equal(t, []string{"24:7A:99:4C:45:C3"}, addrs(e.InferCandidates(obs, "HUAWEI")))

	none := e.InferCandidates(obs, "Apple")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestInferCandidatesUAP(t *testing.T) {
	tab := oui.NewTable([]oui.Entry{
		{Organization: "HUAWEI TECHNOLOGIES CO.,LTD", Prefix: 0x00E0FC},
		{Organization: "HUAWEI TECHNOLOGIES CO.,LTD", Prefix: 0x247A99},
	})
	e := &Engine{Table: tab}

	lap, _ := ParseObservation("4C:45:C3")
	assert.Equal(t, []string{"00:E0:FC:4C:45:C3", "24:7A:99:4C:45:C3"}, addrs(e.InferCandidates(lap, "huawei")))

	withUAP, err := ParseObservation("99:4C:45:C3")
	require.NoError(t, err)
	assert.Equal(t, "99:4C:45:C3", withUAP.Low())
	assert.Equal(t, []string{"24:7A:99:4C:45:C3"}, addrs(e.InferCandidates(withUAP, "huawei")))
}

func TestInferCandidatesPolicy(t *testing.T) {
	tab := oui.NewTable([]oui.Entry{
		{Organization: "Huawei", Prefix: 0x247A99},
		{Organization: "Shenzhen Huaweida", Prefix: 0x112233},
	})
	obs, _ := ParseObservation("4C:45:C3")

	sub := &Engine{Table: tab}
	assert.Len(t, sub.InferCandidates(obs, "huawei"), 2)

	word := &Engine{Table: tab, Policy: oui.Word}
	assert.Equal(t, []string{"24:7A:99:4C:45:C3"}, addrs(word.InferCandidates(obs, "huawei")))
}

func TestParseObservation(t *testing.T) {
	cases := []struct {
		in  string
		err bool
	}{
		{in: "4C:45:C3"},
		{in: "99:4c:45:c3"},
		{in: "4C:45", err: true},
		{in: "24:7A:99:4C:45:C3", err: true},
		{in: "4C:4G:C3", err: true},
		{in: "4C:045:C3", err: true},
		{in: "", err: true},
	}
	for _, tt := range cases {
		_, err := ParseObservation(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("ParseObservation(%q): got %v", tt.in, err)
		}
		if err != nil && !bluing.IsDecode(err) {
			t.Errorf("ParseObservation(%q): got %v want a decode error", tt.in, err)
		}
	}
}

func TestInferGroups(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	a, _ := ParseObservation("4C:45:C3")
	b, _ := ParseObservation("01:02:03")
	obs := []Observation{a, b, a}
	obs[0].Time, obs[1].Time, obs[2].Time = t0, t0.Add(time.Second), t0.Add(10*time.Second)
	obs[2].Channel = 39

	e := &Engine{Table: huaweiOnly()}
	res := e.InferGroups(obs, "Huawei")
	require.Len(t, res, 2)
	assert.Equal(t, "4C:45:C3", res[0].Low())
	assert.Len(t, res[0].Observations, 2)
	assert.Equal(t, []string{"24:7A:99:4C:45:C3"}, addrs(res[0].Candidates))
	assert.Equal(t, []string{"24:7A:99:01:02:03"}, addrs(res[1].Candidates))

	assert.Empty(t, e.InferGroups(nil, "Huawei"))
	for _, g := range e.InferGroups(obs, "Nokia") {
		assert.Empty(t, g.Candidates)
	}
}

func TestDefaultTable(t *testing.T) {
	obs, _ := ParseObservation("4C:45:C3")
	got := (&Engine{}).InferCandidates(obs, "Huawei")
	assert.Contains(t, addrs(got), "24:7A:99:4C:45:C3")
}
