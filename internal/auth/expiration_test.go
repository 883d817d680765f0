package auth

import (
	"testing"
	"time"

	"github.com/classroll/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiration(t *testing.T) {
	tests := []struct {
		spec     string
		want     time.Duration
		wantSpec string
		never    bool
		wantErr  bool
	}{
		{spec: "", want: 30 * day, wantSpec: "30d"},
		{spec: "12h", want: 12 * time.Hour, wantSpec: "12h"},
		{spec: "30d", want: 30 * day, wantSpec: "30d"},
		{spec: "2W", want: 14 * day, wantSpec: "2w"},
		{spec: "1y", want: 365 * day, wantSpec: "1y"},
		{spec: "never_expires", never: true, wantSpec: "never_expires"},
		{spec: "0d", wantErr: true},
		{spec: "-3d", wantErr: true},
		{spec: "10m", wantErr: true},
		{spec: "d", wantErr: true},
		{spec: "forever", wantErr: true},
		{spec: "100y", want: MaxExpiration, wantSpec: "100y"},
		{spec: "876000h", want: MaxExpiration, wantSpec: "876000h"},
		{spec: "101y", wantErr: true},
		{spec: "300y", wantErr: true},
		{spec: "3000000h", wantErr: true},
		{spec: "99999999999999999999d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			got, err := ParseExpiration(tt.spec)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Duration)
			assert.Equal(t, tt.never, got.Never)
			assert.Equal(t, tt.wantSpec, got.Spec)
		})
	}
}

func TestClampDays(t *testing.T) {
	thirty, err := ParseExpiration("30d")
	require.NoError(t, err)
	never, err := ParseExpiration("never_expires")
	require.NoError(t, err)
	hours, err := ParseExpiration("12h")
	require.NoError(t, err)

	assert.Equal(t, Expiration{Spec: "3d", Duration: 3 * day}, thirty.ClampDays(3))
	assert.Equal(t, Expiration{Spec: "3d", Duration: 3 * day}, never.ClampDays(3))
	assert.Equal(t, hours, hours.ClampDays(3))
}

func TestExpiresAt(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e, err := ParseExpiration("2d")
	require.NoError(t, err)
	assert.Equal(t, now.Add(48*time.Hour), e.ExpiresAt(now))

	never, err := ParseExpiration(types.NeverExpires)
	require.NoError(t, err)
	assert.True(t, never.ExpiresAt(now).IsZero())
}
