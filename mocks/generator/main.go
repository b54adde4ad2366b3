package main

import (
    "encoding/json"
    "log"
    "net/http"
    "os"
    "strings"
)

type genReq struct { Prompt string `json:"prompt"`; System string `json:"system"`; MaxTokens int `json:"max_tokens"` }
type genResp struct { Text string `json:"text"`; PromptTokens int `json:"prompt_tokens"`; CompletionTokens int `json:"completion_tokens"` }

func handleGenerate(w http.ResponseWriter, r *http.Request) {
    var req genReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { http.Error(w, err.Error(), 400); return }
    if os.Getenv("MOCK_FAIL") == "1" { http.Error(w, "simulated overload", http.StatusServiceUnavailable); return }
    text := "Berdasarkan konteks yang diberikan, berikut jawaban singkat atas pertanyaan Anda."
    resp := genResp{Text: text, PromptTokens: len(strings.Fields(req.Prompt)), CompletionTokens: len(strings.Fields(text))}
    _ = json.NewEncoder(w).Encode(resp)
}

func main() {
    addr := ":8082"
    if v := os.Getenv("GEN_ADDR"); v != "" { addr = v }
    http.HandleFunc("/generate", handleGenerate)
    log.Printf("Generator mock listening on %s", addr)
    log.Fatal(http.ListenAndServe(addr, nil))
}
