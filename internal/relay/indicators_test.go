package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func valuesOf(inds []Indicator, typ string) []string {
	var out []string
	for _, i := range inds {
		if i.Type == typ {
			out = append(out, i.Value)
		}
	}
	return out
}

func TestExtractIndicators(t *testing.T) {
	content := `beacon to 10.20.30.40 and 10.20.30.40 again
C2: https://evil.example.com/gate.php?id=1.
sender phisher@Bad-Mail.example.org
hash 44d88612fea8a8f36de82e1278abb02f
sha1 3395856ce81f2b7382dee72602f798b642f14140
notes saved in report.txt`

	inds := ExtractIndicators(content)

	assert.Equal(t, []string{"10.20.30.40"}, valuesOf(inds, "ip-dst"))
	assert.Equal(t, []string{"https://evil.example.com/gate.php?id=1"}, valuesOf(inds, "url"))
	assert.Equal(t, []string{"phisher@bad-mail.example.org"}, valuesOf(inds, "email-src"))
	assert.Equal(t, []string{"44d88612fea8a8f36de82e1278abb02f"}, valuesOf(inds, "md5"))
	assert.Equal(t, []string{"3395856ce81f2b7382dee72602f798b642f14140"}, valuesOf(inds, "sha1"))
	assert.Contains(t, valuesOf(inds, "domain"), "evil.example.com")
	assert.NotContains(t, valuesOf(inds, "domain"), "report.txt")
	assert.Empty(t, valuesOf(inds, "sha256"))
}

func TestExtractIndicators_Refang(t *testing.T) {
	inds := ExtractIndicators("hxxp://bad[.]example[.]net/x and 192[.]168[.]1[.]1")
	assert.Equal(t, []string{"http://bad.example.net/x"}, valuesOf(inds, "url"))
	assert.Equal(t, []string{"192.168.1.1"}, valuesOf(inds, "ip-dst"))
}

func TestExtractIndicators_HashLengthsDoNotOverlap(t *testing.T) {
	sha256 := "275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f"
	inds := ExtractIndicators(sha256)
	assert.Equal(t, []string{sha256}, valuesOf(inds, "sha256"))
	assert.Empty(t, valuesOf(inds, "md5"))
	assert.Empty(t, valuesOf(inds, "sha1"))
}

func TestExtractIndicators_None(t *testing.T) {
	assert.Empty(t, ExtractIndicators("nothing to see here"))
}
