// Package config assembles plotdex settings from built-in defaults, an
// optional YAML file, a .env file and the process environment. Command line
// flags are applied on top by the caller.
//
// Example file:
//
//	source: data/wiki_movie_plots_deduped.csv
//	qdrant_url: https://qdrant.example.com:6334
//	collection: movie_plots
//	vector_size: 128
//	request_timeout: 10s
//	ledger_path: .plotdex/ledger
//	embedding:
//	  backend: subprocess
//	  command: [python3, jina_colbert.py]
//	  timeout: 30m
//	upload:
//	  batch_size: 100
//	  concurrency: 2
//	  resume: true
package config
