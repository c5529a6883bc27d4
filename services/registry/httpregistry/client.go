// Package httpregistry reads schools and rosters from the registry's JSON API.
package httpregistry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/uniforme/core"
	"github.com/trezcool/uniforme/core/classroom"
)

const dateLayout = "2006-01-02"

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ classroom.Registry = (*Client)(nil)

func New(conf *core.Config) *Client {
	timeout := conf.Registry.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(conf.Registry.BaseURL, "/"),
		token:   conf.Registry.Token,
		http:    &http.Client{Timeout: timeout},
	}
}

type (
	schoolPayload struct {
		CenterCode string `json:"center_code"`
		Name       string `json:"name"`
	}

	studentPayload struct {
		MinedStudentID string `json:"mined_student_id"`
		Name           string `json:"name"`
		Gender         string `json:"gender"`
		Age            *int   `json:"age"`
		BirthDate      string `json:"birth_date"`
	}

	rosterPayload struct {
		Students []studentPayload `json:"students"`
	}
)

func (c *Client) FetchSchool(ctx context.Context, centerCode string) (classroom.School, bool, error) {
	var payload schoolPayload
	found, err := c.get(ctx, "/schools/"+url.PathEscape(centerCode), nil, &payload)
	if err != nil || !found {
		return classroom.School{}, false, err
	}
	if payload.CenterCode == "" {
		payload.CenterCode = centerCode
	}
	return classroom.School{CenterCode: payload.CenterCode, Name: core.CleanString(payload.Name)}, true, nil
}

func (c *Client) FetchRoster(ctx context.Context, centerCode, grade string, year int) ([]classroom.RosterRecord, error) {
	q := make(url.Values)
	q.Set("grade", grade)
	q.Set("year", strconv.Itoa(year))

	var payload rosterPayload
	found, err := c.get(ctx, "/schools/"+url.PathEscape(centerCode)+"/students", q, &payload)
	if err != nil {
		return nil, err
	}
	if !found {
		return []classroom.RosterRecord{}, nil
	}

	records := make([]classroom.RosterRecord, 0, len(payload.Students))
	for _, s := range payload.Students {
		rec := classroom.RosterRecord{
			MinedStudentID: s.MinedStudentID,
			Name:           s.Name,
			Gender:         classroom.Gender(s.Gender),
			Age:            s.Age,
		}
		if s.BirthDate != "" {
			bd, pErr := time.Parse(dateLayout, s.BirthDate)
			if pErr != nil {
				return nil, unavailable(fmt.Sprintf("student %q birth_date %q: %v", s.Name, s.BirthDate, pErr))
			}
			rec.BirthDate = &bd
		}
		records = append(records, rec)
	}
	return records, nil
}

// get decodes the JSON body of GET path into dst. found is false on 404.
func (c *Client) get(ctx context.Context, path string, query url.Values, dst interface{}) (found bool, err error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, errors.Wrap(err, "building registry request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, unavailable(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	case resp.StatusCode != http.StatusOK:
		// 5xx, 408, 429 and any other answer we cannot use
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, unavailable(fmt.Sprintf("GET %s: %s", path, resp.Status))
	}

	if err = json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, unavailable("decoding response: " + err.Error())
	}
	return true, nil
}

func unavailable(msg string) error {
	return errors.Wrap(core.ErrUpstreamUnavailable, "registry: "+msg)
}
