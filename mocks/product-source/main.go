// Standalone mock of the external product catalog for local development.
// Serves GET /products/{key} with a small fixed inventory; everything else is
// a 404, matching the real catalog's contract.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
)

type product struct {
	Name     string `json:"name"`
	Color    string `json:"color"`
	Material string `json:"material"`
	Price    int    `json:"price"`
	Year     int    `json:"year"`
}

var inventory = map[string]product{
	"0xaa11111111111111111111111111111111111111111111111111111111111111": {
		Name: "Petit Noe", Color: "Black", Material: "Leather", Price: 1800, Year: 2021,
	},
	"0xbb22222222222222222222222222222222222222222222222222222222222222": {
		Name: "Mini Pochette", Color: "Brown", Material: "Canvas", Price: 950, Year: 2023,
	},
	"0xcc33333333333333333333333333333333333333333333333333333333333333": {
		Name: "Grand Palais", Color: "Beige", Material: "Calfskin", Price: 3400, Year: 2022,
	},
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /products/{key}", func(w http.ResponseWriter, r *http.Request) {
		key := strings.ToLower(r.PathValue("key"))
		record, ok := inventory[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(record)
	})

	log.Printf("mock product catalog listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}
