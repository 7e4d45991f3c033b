package anilist

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/h0rv/postergrid/internal/domain"
	"github.com/machinebox/graphql"
)

// mediaFields is the selection shared by the page and single media queries.
const mediaFields = `
	id
	siteUrl
	title {
		userPreferred
		english
		romaji
	}
	coverImage {
		large
		medium
	}
	format
	status
	episodes
	chapters
	averageScore
	seasonYear
	startDate {
		year
	}
	genres
	description(asHtml: false)
	mediaListEntry {
		status
		notes
	}
`

type mediaNode struct {
	ID      int    `json:"id"`
	SiteURL string `json:"siteUrl"`
	Title   struct {
		UserPreferred string `json:"userPreferred"`
		English       string `json:"english"`
		Romaji        string `json:"romaji"`
	} `json:"title"`
	CoverImage *struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"coverImage"`
	Format       string `json:"format"`
	Status       string `json:"status"`
	Episodes     int    `json:"episodes"`
	Chapters     int    `json:"chapters"`
	AverageScore int    `json:"averageScore"`
	SeasonYear   int    `json:"seasonYear"`
	StartDate    *struct {
		Year int `json:"year"`
	} `json:"startDate"`
	Genres         []string `json:"genres"`
	Description    string   `json:"description"`
	MediaListEntry *struct {
		Status string `json:"status"`
		Notes  string `json:"notes"`
	} `json:"mediaListEntry"`
}

// toItem maps a media node to a domain item.
func (n mediaNode) toItem() domain.Item {
	item := domain.Item{
		Title:       firstNonEmpty(n.Title.UserPreferred, n.Title.English, n.Title.Romaji),
		URL:         n.SiteURL,
		Format:      n.Format,
		Status:      n.Status,
		Rating:      n.AverageScore,
		Year:        n.SeasonYear,
		Genres:      n.Genres,
		Description: cleanDescription(n.Description),
	}

	// Synthesized entries without an ID keep an empty ID rather than "0".
	if n.ID > 0 {
		item.ID = strconv.Itoa(n.ID)
	}
	if item.Year == 0 && n.StartDate != nil {
		item.Year = n.StartDate.Year
	}
	if n.CoverImage != nil {
		item.Poster = firstNonEmpty(n.CoverImage.Large, n.CoverImage.Medium)
	}

	// Anime count episodes, manga count chapters
	item.Episodes = n.Episodes
	if item.Episodes == 0 {
		item.Episodes = n.Chapters
	}

	if n.MediaListEntry != nil {
		item.ListStatus = n.MediaListEntry.Status
		item.Notes = n.MediaListEntry.Notes
	}

	return item
}

// Genres returns every genre known to AniList.
func (c *Client) Genres(ctx context.Context) ([]string, error) {
	req := graphql.NewRequest(`
		query {
			GenreCollection
		}
	`)

	var resp struct {
		GenreCollection []string `json:"GenreCollection"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get genres: %w", err)
	}

	return resp.GenreCollection, nil
}

// Page fetches one page of the catalog matching q. Pages are 1-based.
// Returns the items in API order and whether another page exists.
func (c *Client) Page(ctx context.Context, q domain.Query, page, perPage int) ([]domain.Item, bool, error) {
	req := graphql.NewRequest(`
		query($page: Int, $perPage: Int, $type: MediaType, $genre: String, $sort: [MediaSort]) {
			Page(page: $page, perPage: $perPage) {
				pageInfo {
					hasNextPage
					currentPage
				}
				media(type: $type, genre: $genre, sort: $sort, isAdult: false) {` + mediaFields + `}
			}
		}
	`)
	req.Var("page", page)
	req.Var("perPage", perPage)
	req.Var("type", q.Type)
	req.Var("sort", []string{q.Sort})
	if q.Genre != "" {
		req.Var("genre", q.Genre)
	} else {
		req.Var("genre", nil)
	}

	var resp struct {
		Page struct {
			PageInfo struct {
				HasNextPage bool `json:"hasNextPage"`
				CurrentPage int  `json:"currentPage"`
			} `json:"pageInfo"`
			Media []mediaNode `json:"media"`
		} `json:"Page"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, false, fmt.Errorf("failed to get page %d: %w", page, err)
	}

	items := make([]domain.Item, 0, len(resp.Page.Media))
	for _, node := range resp.Page.Media {
		items = append(items, node.toItem())
	}

	return items, resp.Page.PageInfo.HasNextPage, nil
}

// Media fetches a single catalog entry by ID.
func (c *Client) Media(ctx context.Context, id string) (domain.Item, error) {
	mediaID, err := parseID(id)
	if err != nil {
		return domain.Item{}, err
	}

	req := graphql.NewRequest(`
		query($id: Int) {
			Media(id: $id) {` + mediaFields + `}
		}
	`)
	req.Var("id", mediaID)

	var resp struct {
		Media *mediaNode `json:"Media"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return domain.Item{}, fmt.Errorf("failed to get media %s: %w", id, err)
	}
	if resp.Media == nil {
		return domain.Item{}, fmt.Errorf("media %s not found", id)
	}

	return resp.Media.toItem(), nil
}

// Reviews fetches the top rated reviews of a catalog entry.
func (c *Client) Reviews(ctx context.Context, id string, limit int) ([]domain.Review, error) {
	mediaID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	req := graphql.NewRequest(`
		query($id: Int, $perPage: Int) {
			Media(id: $id) {
				reviews(perPage: $perPage, sort: [RATING_DESC]) {
					nodes {
						id
						summary
						body(asHtml: false)
						score
						createdAt
						user {
							name
						}
					}
				}
			}
		}
	`)
	req.Var("id", mediaID)
	req.Var("perPage", limit)

	var resp struct {
		Media *struct {
			Reviews struct {
				Nodes []struct {
					ID        int    `json:"id"`
					Summary   string `json:"summary"`
					Body      string `json:"body"`
					Score     int    `json:"score"`
					CreatedAt int64  `json:"createdAt"`
					User      *struct {
						Name string `json:"name"`
					} `json:"user"`
				} `json:"nodes"`
			} `json:"reviews"`
		} `json:"Media"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}
	if resp.Media == nil {
		return []domain.Review{}, nil
	}

	reviews := make([]domain.Review, 0, len(resp.Media.Reviews.Nodes))
	for _, node := range resp.Media.Reviews.Nodes {
		review := domain.Review{
			ID:        strconv.Itoa(node.ID),
			Summary:   node.Summary,
			Body:      cleanDescription(node.Body),
			Score:     node.Score,
			CreatedAt: node.CreatedAt,
		}

		// Handle deleted users (user is nil)
		if node.User != nil {
			review.Author = node.User.Name
		}

		reviews = append(reviews, review)
	}

	return reviews, nil
}

// Viewer returns the name of the authenticated user.
func (c *Client) Viewer(ctx context.Context) (string, error) {
	if err := c.requireToken("viewer"); err != nil {
		return "", err
	}

	req := graphql.NewRequest(`
		query {
			Viewer {
				id
				name
			}
		}
	`)

	var resp struct {
		Viewer struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"Viewer"`
	}

	if err := c.makeRequest(ctx, req, &resp); err != nil {
		return "", fmt.Errorf("failed to get viewer: %w", err)
	}

	return resp.Viewer.Name, nil
}

// descriptionMarkup is the markup AniList keeps in plain-text descriptions.
var descriptionMarkup = strings.NewReplacer(
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"<i>", "", "</i>", "",
	"<b>", "", "</b>", "",
	"&amp;", "&",
	"&quot;", `"`,
	"&#039;", "'",
	"~!", "", "!~", "", // spoiler fences
)

func cleanDescription(s string) string {
	s = descriptionMarkup.Replace(s)
	// Collapse the blank lines left behind by paired <br> tags.
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
