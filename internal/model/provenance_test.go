package model

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestSucceeded_DropsBlankValues(t *testing.T) {
	t.Parallel()

	r := Succeeded("ATTOM", map[Path]string{
		"assessment.assessedValue": "250000",
		"owner.mailing":            "   ",
		"school[0].name":           "Lamar",
	})

	assert.True(t, r.OK)
	assert.Equal(t, "ATTOM", r.Provenance)
	assert.Len(t, r.Values, 2)
	assert.Equal(t, "Lamar", r.Values["school.0.name"])
}

func TestFromError(t *testing.T) {
	t.Parallel()

	r := FromError(eris.Wrap(context.DeadlineExceeded, "hcad: fetch"))
	assert.False(t, r.OK)
	assert.Equal(t, KindTimeout, r.ErrorKind)

	r = FromError(errors.New("status 500"))
	assert.Equal(t, KindAdapter, r.ErrorKind)
	assert.Equal(t, "status 500", r.Message)

	r = FromError(nil)
	assert.Equal(t, KindAdapter, r.ErrorKind)
}

func TestSourceRecord_Lookup(t *testing.T) {
	t.Parallel()

	r := Succeeded("ATTOM", map[Path]string{
		"owner.owner1.firstname": "Jane",
		"owner.owner1.lastname":  "Doe",
		"building.rooms.beds":    "3",
	})

	v, ok := r.Lookup(PathSet{"building.rooms.beds"})
	assert.True(t, ok)
	assert.Equal(t, "3", v)

	v, ok = r.Lookup(PathSet{"owner.owner1.firstname", "owner.owner1.lastname"})
	assert.True(t, ok)
	assert.Equal(t, "Jane Doe", v)

	v, ok = r.Lookup(PathSet{"owner.owner1.middlename", "owner.owner1.lastname"})
	assert.True(t, ok)
	assert.Equal(t, "Doe", v)

	_, ok = r.Lookup(PathSet{"sale.saleAmount"})
	assert.False(t, ok)

	_, ok = r.Lookup(nil)
	assert.False(t, ok)
}

func TestSourceRecord_LookupOnFailedRecord(t *testing.T) {
	t.Parallel()

	r := Failed(KindAdapter, "boom")
	r.Values = map[Path]string{"bedrooms": "4"}

	_, ok := r.Lookup(PathSet{"bedrooms"})
	assert.False(t, ok, "failed records never supply values")
}

func TestSkipped(t *testing.T) {
	t.Parallel()

	assert.True(t, Skipped("user opted out").IsSkipped())
	assert.False(t, Failed(KindTimeout, "slow").IsSkipped())
	assert.False(t, Succeeded("x", nil).IsSkipped())
}
