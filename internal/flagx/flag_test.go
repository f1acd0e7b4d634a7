package flagx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	allowed := []string{"-c", "--config", "-a"}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate value", []string{"-c", "conf.json", "-x", "1"}, []string{"-c", "conf.json"}},
		{"equals form", []string{"--config=alt.json", "-x", "1"}, []string{"--config=alt.json"}},
		{"order preserved", []string{"-a", ":8080", "-c", "conf.json"}, []string{"-a", ":8080", "-c", "conf.json"}},
		{"unknown flags dropped", []string{"-x", "1", "--y=2", "positional"}, []string{}},
		{"dash token is not a value", []string{"-c", "-notvalue"}, []string{"-c"}},
		{"trailing flag kept bare", []string{"-c"}, []string{"-c"}},
		{"repeats preserved", []string{"-c", "one.json", "-c", "two.json"}, []string{"-c", "one.json", "-c", "two.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, allowed))
		})
	}
}

func TestJsonConfigFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin", "-c", "/path/short.json"}
	assert.Equal(t, "/path/short.json", JsonConfigFlags())

	os.Args = []string{"testbin", "-config", "/path/long.json"}
	assert.Equal(t, "/path/long.json", JsonConfigFlags())

	os.Args = []string{"testbin", "-x", "1"}
	assert.Empty(t, JsonConfigFlags())

	// when both forms appear, the later one wins
	os.Args = []string{"testbin", "-c", "/path/1.json", "-config", "/path/2.json"}
	assert.Equal(t, "/path/2.json", JsonConfigFlags())
}
