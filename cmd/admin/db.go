package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type episodeRow struct {
	ID          string   `json:"id"`
	Seed        int64    `json:"seed"`
	Agents      int      `json:"agents"`
	MaxSteps    int      `json:"max_steps"`
	StartedAt   string   `json:"started_at"`
	EndedAt     *string  `json:"ended_at,omitempty"`
	Ticks       *int64   `json:"ticks,omitempty"`
	TotalReward *float64 `json:"total_reward,omitempty"`
}

type tickRow struct {
	Tick      int64   `json:"tick"`
	Digest    string  `json:"digest"`
	Frozen    int     `json:"frozen"`
	Successes int     `json:"successes"`
	RewardSum float64 `json:"reward_sum"`
}

type agentRow struct {
	Agent  int                `json:"agent"`
	Group  string             `json:"group"`
	Reward float64            `json:"reward"`
	Stats  map[string]float64 `json:"stats"`
}

type groupRow struct {
	Group    string  `json:"group"`
	Episodes int     `json:"episodes"`
	Agents   int     `json:"agents"`
	Reward   float64 `json:"reward"`
	MeanPer  float64 `json:"mean_reward_per_agent"`
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/arena.sqlite)")
	episode := fs.String("episode", "", "episode id (ticks, agents)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "episodes"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "arena.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if (q == "ticks" || q == "agents") && strings.TrimSpace(*episode) == "" {
		latest, err := latestEpisode(db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "latest episode:", err)
			os.Exit(1)
		}
		*episode = latest
	}

	var rows []any
	switch q {
	case "episodes":
		rs, err := queryEpisodes(db, *limit)
		err = collect(&rows, rs, err)
		exitOn(err)
	case "ticks":
		rs, err := queryTicks(db, *episode, *limit)
		err = collect(&rows, rs, err)
		exitOn(err)
	case "agents":
		rs, err := queryAgents(db, *episode)
		err = collect(&rows, rs, err)
		exitOn(err)
	case "groups":
		rs, err := queryGroups(db)
		err = collect(&rows, rs, err)
		exitOn(err)
	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		os.Exit(2)
	}
	for _, r := range rows {
		printJSON(r)
	}
}

func collect[T any](out *[]any, rs []T, err error) error {
	if err != nil {
		return err
	}
	for _, r := range rs {
		*out = append(*out, r)
	}
	return nil
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "query:", err)
		os.Exit(1)
	}
}

func latestEpisode(db *sql.DB) (string, error) {
	var id string
	err := db.QueryRow(`SELECT id FROM episodes ORDER BY started_at DESC LIMIT 1`).Scan(&id)
	return id, err
}

func queryEpisodes(db *sql.DB, limit int) ([]episodeRow, error) {
	rows, err := db.Query(`SELECT id,seed,agents,max_steps,started_at,ended_at,ticks,total_reward FROM episodes ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []episodeRow
	for rows.Next() {
		var r episodeRow
		var ended sql.NullString
		var ticks sql.NullInt64
		var total sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.Seed, &r.Agents, &r.MaxSteps, &r.StartedAt, &ended, &ticks, &total); err != nil {
			return nil, err
		}
		if ended.Valid {
			r.EndedAt = &ended.String
		}
		if ticks.Valid {
			r.Ticks = &ticks.Int64
		}
		if total.Valid {
			r.TotalReward = &total.Float64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryTicks(db *sql.DB, episode string, limit int) ([]tickRow, error) {
	rows, err := db.Query(`SELECT tick,digest,frozen,successes,reward_sum FROM ticks WHERE episode_id=? ORDER BY tick DESC LIMIT ?`, episode, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []tickRow
	for rows.Next() {
		var r tickRow
		if err := rows.Scan(&r.Tick, &r.Digest, &r.Frozen, &r.Successes, &r.RewardSum); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryAgents(db *sql.DB, episode string) ([]agentRow, error) {
	rows, err := db.Query(`SELECT agent,group_name,reward,stats_json FROM agent_stats WHERE episode_id=? ORDER BY agent`, episode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []agentRow
	for rows.Next() {
		var r agentRow
		var raw string
		if err := rows.Scan(&r.Agent, &r.Group, &r.Reward, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &r.Stats); err != nil {
			return nil, fmt.Errorf("agent %d stats_json: %w", r.Agent, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// queryGroups aggregates agent rewards per group over all finished episodes.
func queryGroups(db *sql.DB) ([]groupRow, error) {
	rows, err := db.Query(`SELECT group_name, COUNT(DISTINCT episode_id), COUNT(*), SUM(reward) FROM agent_stats GROUP BY group_name ORDER BY group_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []groupRow
	for rows.Next() {
		var r groupRow
		if err := rows.Scan(&r.Group, &r.Episodes, &r.Agents, &r.Reward); err != nil {
			return nil, err
		}
		if r.Agents > 0 {
			r.MeanPer = r.Reward / float64(r.Agents)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
