package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is where the detection backend listens when run locally.
const DefaultBaseURL = "http://127.0.0.1:8000"

// HTTPClient talks JSON to the detection backend.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for the backend at baseURL. An empty
// baseURL selects DefaultBaseURL.
func NewHTTPClient(baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Connect asks the backend to open its serial link to the LED controller.
// Empty port / zero baud let the backend autodetect.
func (c *HTTPClient) Connect(port string, baud int) (ConnectResult, error) {
	body := map[string]interface{}{}
	if port != "" {
		body["port"] = port
	}
	if baud != 0 {
		body["baud"] = baud
	}
	var result ConnectResult
	if err := c.postJSON("/device/connect", body, &result); err != nil {
		return ConnectResult{}, err
	}
	return result, nil
}

// SetPower switches every LED on (moderate white) or off.
func (c *HTTPClient) SetPower(on bool) error {
	return c.postJSON("/device/power", map[string]bool{"on": on}, nil)
}

// SetPixel sets a single LED color.
func (c *HTTPClient) SetPixel(index int, r, g, b uint8) error {
	body := map[string]int{
		"index": index,
		"r":     int(r),
		"g":     int(g),
		"b":     int(b),
	}
	return c.postJSON("/draw/led", body, nil)
}

// SetPixelsBatch sets many LED colors in one request. The wire shape is
// {"pixels": [[index, r, g, b], ...]}.
func (c *HTTPClient) SetPixelsBatch(updates []PixelUpdate) error {
	pixels := make([][4]int, len(updates))
	for i, u := range updates {
		pixels[i] = [4]int{u.Index, int(u.R), int(u.G), int(u.B)}
	}
	return c.postJSON("/draw/led/batch", map[string]interface{}{"pixels": pixels}, nil)
}

// StartMapping kicks off a fresh detection run.
func (c *HTTPClient) StartMapping(req StartMappingRequest) error {
	return c.postJSON("/start_mapping", req, nil)
}

// ResumeMapping restarts detection from a specific LED index, reusing the
// backend's last ROI. The backend takes these as query parameters.
func (c *HTTPClient) ResumeMapping(fromIndex int, brightness float64) error {
	q := url.Values{}
	q.Set("resume_from", strconv.Itoa(fromIndex))
	q.Set("brightness", strconv.FormatFloat(brightness, 'f', -1, 64))
	return c.postJSON("/resume_mapping?"+q.Encode(), nil, nil)
}

// MappingStatus fetches the live status document.
func (c *HTTPClient) MappingStatus() (MappingStatus, error) {
	var status MappingStatus
	if err := c.getJSON("/status", &status); err != nil {
		return MappingStatus{}, err
	}
	return status, nil
}

// LoadMapping fetches the backend's own saved mapping.json, if it has one.
func (c *HTTPClient) LoadMapping() (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.getJSON("/load_mapping", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *HTTPClient) postJSON(path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("detector: encode %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("detector: build request %s: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *HTTPClient) getJSON(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("detector: build request %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("detector: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("detector: read %s: %w", req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// FastAPI error bodies look like {"detail": "..."}.
		var e struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(data, &e) == nil && e.Detail != "" {
			return fmt.Errorf("detector: %s: %s (HTTP %d)", req.URL.Path, e.Detail, resp.StatusCode)
		}
		return fmt.Errorf("detector: %s: HTTP %d", req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("detector: decode %s: %w", req.URL.Path, err)
	}
	return nil
}
