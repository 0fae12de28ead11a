package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
)

const baseURL = "http://localhost:3000/api"

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper. Returns the session id echoed by the server so subsequent
// calls hit the same case.
func sendRequest(method, url, sessionId string, body interface{}) (*http.Response, []byte, string, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, sessionId, err
	}

	req.Header.Set("Content-Type", "application/json")
	if sessionId != "" {
		req.Header.Set("X-Session-Id", sessionId)
	}

	client := &http.Client{} // No timeout, generation can take a while
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, sessionId, err
	}
	defer resp.Body.Close()

	if echoed := resp.Header.Get("X-Session-Id"); echoed != "" {
		sessionId = echoed
	}

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, sessionId, err
}

func decode(body []byte) map[string]interface{} {
	var out map[string]interface{}
	json.Unmarshal(body, &out)
	return out
}

func main() {
	color.Cyan("🚀 Starting Review API Test\n")
	sessionId := ""

	// 1. List capabilities
	color.Yellow("\n1. List capability catalog")
	resp, body, sessionId, err := sendRequest("GET", "/capability/v1", sessionId, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s (session %s)", resp.Status, sessionId)

	// 2. Generate a review
	color.Yellow("\n2. Generate review")
	generateReq := map[string]interface{}{
		"case_description": "A 45 year old presented with palpitations after starting a new salbutamol inhaler. ECG normal, reassured, safety netting discussed.",
		"selected_capabilities": []string{
			"Data gathering and interpretation",
			"Making a diagnosis",
		},
	}
	resp, body, sessionId, err = sendRequest("POST", "/review/v1/generate", sessionId, generateReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(decode(body))

	// 3. Improve one section
	color.Yellow("\n3. Improve the reflection section")
	improveReq := map[string]interface{}{
		"section_type":       "reflection",
		"improvement_prompt": "Make it more specific about the medication review.",
	}
	resp, body, sessionId, err = sendRequest("POST", "/review/v1/section/improve", sessionId, improveReq)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(decode(body))

	// 4. Session state
	color.Yellow("\n4. Session state")
	resp, body, sessionId, err = sendRequest("GET", "/review/v1/state", sessionId, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(decode(body))

	// 5. Reload current review (persistence round trip)
	color.Yellow("\n5. Reload current review")
	resp, body, sessionId, err = sendRequest("GET", "/review/v1", sessionId, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)

	// 6. Start a new case
	color.Yellow("\n6. Start new case")
	resp, body, sessionId, err = sendRequest("POST", "/review/v1/new-case", sessionId, nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)
	prettyPrint(decode(body))

	color.Cyan("\n✅ Review API test finished")
}
