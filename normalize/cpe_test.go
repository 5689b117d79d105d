package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCpe(t *testing.T) {
	t.Run("2.2 and 2.3 forms of the same product share an id", func(t *testing.T) {
		c22, err := ParseCpe("cpe:/o:redhat:enterprise_linux:9::baseos")
		require.NoError(t, err)
		c23, err := ParseCpe("cpe:2.3:o:redhat:enterprise_linux:9:*:baseos:*:*:*:*:*")
		require.NoError(t, err)

		assert.Equal(t, c22.ID(), c23.ID())
		assert.Equal(t, "redhat", c23.Vendor.Value)
		assert.Equal(t, CpeAny, c23.Update.Kind)
	})

	t.Run("is case insensitive", func(t *testing.T) {
		assert.Equal(t,
			MustParseCpe("cpe:/a:Apache:Tomcat:9.0").ID(),
			MustParseCpe("cpe:/a:apache:tomcat:9.0").ID(),
		)
	})

	t.Run("any and not applicable are distinct", func(t *testing.T) {
		assert.NotEqual(t,
			MustParseCpe("cpe:2.3:a:vendor:product:-:*:*:*:*:*:*:*").ID(),
			MustParseCpe("cpe:2.3:a:vendor:product:*:*:*:*:*:*:*:*").ID(),
		)
	})

	t.Run("honors escaped colons", func(t *testing.T) {
		c, err := ParseCpe(`cpe:2.3:a:vendor:prod\:uct:1.0:*:*:*:*:*:*:*`)
		require.NoError(t, err)
		assert.Equal(t, "prod:uct", c.Product.Value)
		assert.Equal(t, "1.0", c.Version.Value)
	})

	t.Run("renders a 2.3 string that parses back", func(t *testing.T) {
		c := MustParseCpe("cpe:/a:vendor:product:1.0")
		back, err := ParseCpe(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, back)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := ParseCpe("cpe:3.0:a:b")
		assert.Error(t, err)
		_, err = ParseCpe("cpe:/x:vendor:product")
		assert.Error(t, err)
	})
}

func TestCpeMatches(t *testing.T) {
	pattern := MustParseCpe("cpe:/o:redhat:enterprise_linux:9")

	assert.True(t, pattern.Matches(MustParseCpe("cpe:/o:redhat:enterprise_linux:9::baseos")))
	assert.False(t, pattern.Matches(MustParseCpe("cpe:/o:redhat:enterprise_linux:8::baseos")))
	assert.True(t, MustParseCpe("cpe:/o:redhat").Matches(pattern))
	assert.False(t, pattern.Matches(MustParseCpe("cpe:/o:redhat")))
}
