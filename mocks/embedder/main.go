package main

import (
    "encoding/json"
    "hash/fnv"
    "log"
    "net/http"
    "os"
)

type embedReq struct { Input []string `json:"input"`; Model string `json:"model"` }
type embedData struct { Embedding []float32 `json:"embedding"`; Index int `json:"index"` }
type embedResp struct { Data []embedData `json:"data"` }

const dims = 16

// deterministic pseudo-embedding so repeated queries land near each other
func embed(text string) []float32 {
    h := fnv.New64a()
    _, _ = h.Write([]byte(text))
    seed := h.Sum64()
    out := make([]float32, dims)
    for i := range out {
        seed = seed*6364136223846793005 + 1442695040888963407
        out[i] = float32(int64(seed>>33)%1000) / 1000.0
    }
    return out
}

func handleEmbeddings(w http.ResponseWriter, r *http.Request) {
    var req embedReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil { http.Error(w, err.Error(), 400); return }
    resp := embedResp{}
    for i, in := range req.Input {
        resp.Data = append(resp.Data, embedData{Embedding: embed(in), Index: i})
    }
    _ = json.NewEncoder(w).Encode(resp)
}

func main() {
    addr := ":8083"
    if v := os.Getenv("EMBED_ADDR"); v != "" { addr = v }
    http.HandleFunc("/v1/embeddings", handleEmbeddings)
    log.Printf("Embedder mock listening on %s", addr)
    log.Fatal(http.ListenAndServe(addr, nil))
}
