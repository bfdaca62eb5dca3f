package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrsandeep/anisync-go/internal/models"
)

func TestFilterHandlers(t *testing.T) {
	ts := setupTestServer(t)

	rr := ts.do("POST", "/api/filters", models.Filter{Kind: "bogus", Object: models.FilterGlobal})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.do("POST", "/api/filters", models.Filter{Kind: models.FilterEpisodeFloor, Value: 3, Object: models.FilterLocal})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "local filters need a source id")

	rr = ts.do("POST", "/api/filters", models.Filter{Kind: models.FilterSubgroupBlock, Value: 370, Object: models.FilterGlobal})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[models.Filter](t, rr)

	rr = ts.do("GET", "/api/filters", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.Filter](t, rr), 1)

	assert.Equal(t, http.StatusNoContent, ts.do("DELETE", "/api/filters/"+itoa(created.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do("DELETE", "/api/filters/"+itoa(created.ID), nil).Code)
}
