package anilist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/h0rv/postergrid/internal/auth"
	"github.com/h0rv/postergrid/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	Authorization string                 `json:"-"`
}

// fakeAniList serves a canned response body and records each request.
func fakeAniList(t *testing.T, body string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var requests []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		req.Authorization = r.Header.Get("Authorization")
		requests = append(requests, req)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &requests
}

const pageResponse = `{
	"data": {
		"Page": {
			"pageInfo": {"hasNextPage": true, "currentPage": 2},
			"media": [
				{
					"id": 1,
					"siteUrl": "https://anilist.co/anime/1",
					"title": {"userPreferred": "Cowboy Bebop", "english": "Cowboy Bebop", "romaji": "Cowboy Bebop"},
					"coverImage": {"large": "https://img.example/1-large.jpg", "medium": "https://img.example/1.jpg"},
					"format": "TV",
					"status": "FINISHED",
					"episodes": 26,
					"averageScore": 86,
					"seasonYear": 1998,
					"genres": ["Action", "Sci-Fi"],
					"description": "Enter a world in the distant future...<br><br>\n<i>(Source: Sunrise)</i>",
					"mediaListEntry": {"status": "COMPLETED", "notes": "classic"}
				},
				{
					"id": 30013,
					"title": {"userPreferred": "", "english": "", "romaji": "One Punch-Man"},
					"coverImage": null,
					"format": "MANGA",
					"chapters": 180,
					"startDate": {"year": 2012},
					"mediaListEntry": null
				}
			]
		}
	}
}`

func TestClient_Page(t *testing.T) {
	srv, requests := fakeAniList(t, pageResponse)
	client := New(srv.URL, "")

	q := domain.Query{Type: domain.MediaTypeAnime, Sort: domain.SortPopularity}
	items, hasNext, err := client.Page(context.Background(), q, 2, 24)

	require.NoError(t, err)
	assert.True(t, hasNext)
	require.Len(t, items, 2)

	bebop := items[0]
	assert.Equal(t, "1", bebop.ID)
	assert.Equal(t, "Cowboy Bebop", bebop.Title)
	assert.Equal(t, "https://img.example/1-large.jpg", bebop.Poster)
	assert.Equal(t, 1998, bebop.Year)
	assert.Equal(t, 86, bebop.Rating)
	assert.Equal(t, 26, bebop.Episodes)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, bebop.Genres)
	assert.Equal(t, domain.ListStatusCompleted, bebop.ListStatus)
	assert.Equal(t, "classic", bebop.Notes)
	assert.Equal(t, "Enter a world in the distant future...\n\n(Source: Sunrise)", bebop.Description)

	opm := items[1]
	assert.Equal(t, "One Punch-Man", opm.Title, "falls back to romaji")
	assert.Empty(t, opm.Poster)
	assert.Equal(t, 2012, opm.Year, "falls back to start date")
	assert.Equal(t, 180, opm.Episodes, "manga count chapters")
	assert.Empty(t, opm.ListStatus)

	require.Len(t, *requests, 1)
	vars := (*requests)[0].Variables
	assert.EqualValues(t, 2, vars["page"])
	assert.EqualValues(t, 24, vars["perPage"])
	assert.Equal(t, "ANIME", vars["type"])
	assert.Equal(t, []interface{}{"POPULARITY_DESC"}, vars["sort"])
	assert.Nil(t, vars["genre"], "empty genre is sent as null")
	assert.Empty(t, (*requests)[0].Authorization, "anonymous client sends no token")
}

func TestClient_PageWithGenreAndToken(t *testing.T) {
	srv, requests := fakeAniList(t, `{"data": {"Page": {"pageInfo": {"hasNextPage": false}, "media": []}}}`)
	client := New(srv.URL, "secret")

	items, hasNext, err := client.Page(context.Background(), domain.Query{Type: domain.MediaTypeManga, Genre: "Drama", Sort: domain.SortScore}, 1, 10)

	require.NoError(t, err)
	assert.False(t, hasNext)
	assert.Empty(t, items)
	assert.Equal(t, "Drama", (*requests)[0].Variables["genre"])
	assert.Equal(t, "Bearer secret", (*requests)[0].Authorization)
}

func TestClient_GraphQLError(t *testing.T) {
	srv, _ := fakeAniList(t, `{"errors": [{"message": "Too Many Requests.", "status": 429}], "data": null}`)
	client := New(srv.URL, "")

	_, _, err := client.Page(context.Background(), domain.Query{Type: domain.MediaTypeAnime}, 1, 10)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get page 1")
	assert.Contains(t, err.Error(), "Too Many Requests")
}

func TestClient_Genres(t *testing.T) {
	srv, _ := fakeAniList(t, `{"data": {"GenreCollection": ["Action", "Adventure", "Comedy"]}}`)

	genres, err := New(srv.URL, "").Genres(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Action", "Adventure", "Comedy"}, genres)
}

func TestClient_Reviews(t *testing.T) {
	srv, requests := fakeAniList(t, `{"data": {"Media": {"reviews": {"nodes": [
		{"id": 7, "summary": "Timeless", "body": "See you space cowboy<br>", "score": 95, "createdAt": 1600000000, "user": {"name": "faye"}},
		{"id": 8, "summary": "Orphaned", "body": "text", "score": 60, "createdAt": 1600000001, "user": null}
	]}}}}`)

	reviews, err := New(srv.URL, "").Reviews(context.Background(), "1", 5)

	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, domain.Review{
		ID:        "7",
		Author:    "faye",
		Summary:   "Timeless",
		Body:      "See you space cowboy",
		Score:     95,
		CreatedAt: 1600000000,
	}, reviews[0])
	assert.Empty(t, reviews[1].Author, "deleted users have no name")
	assert.EqualValues(t, 1, (*requests)[0].Variables["id"])
	assert.EqualValues(t, 5, (*requests)[0].Variables["perPage"])
}

func TestClient_InvalidID(t *testing.T) {
	client := New("http://127.0.0.1:0", "secret")

	_, err := client.Reviews(context.Background(), "not-a-number", 5)
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = client.Media(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)

	err = client.SaveListStatus(context.Background(), "-3", domain.ListStatusCurrent)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestClient_Media(t *testing.T) {
	srv, _ := fakeAniList(t, `{"data": {"Media": {"id": 5, "title": {"userPreferred": "Paprika"}, "format": "MOVIE"}}}`)

	item, err := New(srv.URL, "").Media(context.Background(), "5")

	require.NoError(t, err)
	assert.Equal(t, "5", item.ID)
	assert.Equal(t, "Paprika", item.Title)
}

func TestClient_MutationsRequireToken(t *testing.T) {
	srv, requests := fakeAniList(t, `{"data": {}}`)
	client := New(srv.URL, "")

	assert.False(t, client.HasToken())
	assert.ErrorIs(t, client.SaveListStatus(context.Background(), "1", domain.ListStatusCurrent), auth.ErrNoToken)
	assert.ErrorIs(t, client.SaveNotes(context.Background(), "1", "note"), auth.ErrNoToken)

	_, err := client.Viewer(context.Background())
	assert.ErrorIs(t, err, auth.ErrNoToken)
	assert.Empty(t, *requests, "nothing is sent without a token")
}

func TestClient_SaveListStatus(t *testing.T) {
	srv, requests := fakeAniList(t, `{"data": {"SaveMediaListEntry": {"id": 99, "status": "CURRENT", "notes": ""}}}`)
	client := New(srv.URL, "secret")

	require.NoError(t, client.SaveListStatus(context.Background(), "1", domain.ListStatusCurrent))

	req := (*requests)[0]
	assert.True(t, strings.Contains(req.Query, "SaveMediaListEntry"))
	assert.EqualValues(t, 1, req.Variables["mediaId"])
	assert.Equal(t, "CURRENT", req.Variables["status"])
	assert.NotContains(t, req.Variables, "notes", "notes are left untouched")
}

func TestClient_SaveNotes(t *testing.T) {
	srv, requests := fakeAniList(t, `{"data": {"SaveMediaListEntry": {"id": 99, "status": "CURRENT", "notes": "rewatch"}}}`)
	client := New(srv.URL, "secret")

	require.NoError(t, client.SaveNotes(context.Background(), "1", "rewatch"))

	vars := (*requests)[0].Variables
	assert.Equal(t, "rewatch", vars["notes"])
	assert.NotContains(t, vars, "status")
}

func TestClient_Viewer(t *testing.T) {
	srv, _ := fakeAniList(t, `{"data": {"Viewer": {"id": 1, "name": "spike"}}}`)

	name, err := New(srv.URL, "secret").Viewer(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "spike", name)
}

func TestCleanDescription(t *testing.T) {
	tests := map[string]struct {
		in, want string
	}{
		"plain":            {in: "Just text.", want: "Just text."},
		"breaks":           {in: "One<br>Two<br/>Three<br />Four", want: "One\nTwo\nThree\nFour"},
		"collapsed blanks": {in: "A<br><br><br><br>B", want: "A\n\nB"},
		"entities":         {in: "Tom &amp; Jerry &quot;quoted&quot; it&#039;s", want: `Tom & Jerry "quoted" it's`},
		"spoilers":         {in: "The twist: ~!it was a dream!~", want: "The twist: it was a dream"},
		"trims":            {in: "  <b>bold</b>\n", want: "bold"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, cleanDescription(tc.in))
		})
	}
}
