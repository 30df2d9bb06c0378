// Package client implements the interactive REPL over the zipline HTTP
// API.
package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/wizenheimer/zipline"
)

const banner = `Available commands:
  load: loads the prebuilt index.mpk
  search (comma separated keywords): performs a search with the given keywords
  exit: quits the tool
  max_length (integer): set maximum amount of returned search results
  min_score (float): set minimum score of returned search results
`

// Client drives one zipline service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the service at baseURL, e.g.
// "http://127.0.0.1:8000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Load asks the service to restore its index from the snapshot file.
func (c *Client) Load() error {
	resp, err := c.http.Post(c.baseURL+"/load", "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("load failed: %s", strings.TrimSpace(string(msg)))
	}
	return nil
}

// searchData mirrors the /search request body.
type searchData struct {
	Terms     []string `json:"terms"`
	MaxLength *int     `json:"max_length,omitempty"`
	MinScore  *float64 `json:"min_score,omitempty"`
}

// Search runs one ranked query.
func (c *Client) Search(terms []string, maxLength int, minScore float64) (zipline.SearchResult, error) {
	var result zipline.SearchResult

	body, err := json.Marshal(searchData{
		Terms:     terms,
		MaxLength: &maxLength,
		MinScore:  &minScore,
	})
	if err != nil {
		return result, err
	}

	resp, err := c.http.Post(c.baseURL+"/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return result, fmt.Errorf("search failed: %s", strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("decode search result: %w", err)
	}
	return result, nil
}

// Run reads commands from in and writes responses to out until `exit`
// or EOF.
//
// Command set (one per line):
//
//	load
//	search K1,K2,...
//	max_length N
//	min_score F
//	exit
//
// Anything else prints "Invalid command".
func (c *Client) Run(in io.Reader, out io.Writer) error {
	fmt.Fprint(out, banner)

	maxLength := 100
	minScore := 0.0

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "exit"):
			return nil

		case strings.HasPrefix(line, "load"):
			if err := c.Load(); err != nil {
				fmt.Fprintf(out, "Error loading index: %v\n", err)
			} else {
				fmt.Fprintln(out, "Index succesfully loaded")
			}

		case strings.HasPrefix(line, "max_length"):
			parts := strings.Split(line, " ")
			n, err := strconv.Atoi(parts[len(parts)-1])
			if err != nil {
				fmt.Fprintln(out, "Can't parse as integer")
				continue
			}
			maxLength = n

		case strings.HasPrefix(line, "min_score"):
			parts := strings.Split(line, " ")
			f, err := strconv.ParseFloat(parts[len(parts)-1], 64)
			if err != nil {
				fmt.Fprintln(out, "Invalid command")
				continue
			}
			minScore = f

		default:
			parts := strings.Split(line, " ")
			if parts[0] != "search" || len(parts) < 2 {
				fmt.Fprintln(out, "Invalid command")
				continue
			}
			terms := zipline.SplitQuery(strings.Join(parts[1:], " "))
			result, err := c.Search(terms, maxLength, minScore)
			if err != nil {
				fmt.Fprintf(out, "Error searching: %v\n", err)
				continue
			}
			if result.Total == 0 {
				fmt.Fprintln(out, "No results found")
				continue
			}
			for _, m := range result.Matches {
				fmt.Fprintf(out, "Found %s, with score %v\n", m.FileName, m.Score)
			}
		}
	}
	return scanner.Err()
}
