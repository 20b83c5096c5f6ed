// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package harvest

// Resource names one logical resource and the candidate paths that might
// serve it, most likely first. Candidate order is fixed; each candidate is
// tried at most once per run.
type Resource struct {
	Name       string
	Candidates []string
}

// FanOut expands a list resource into one extra fetch per element: the
// discovered endpoint of Target is re-queried with Param set to each key.
// Results land in the snapshot as "<target>_<key>".
type FanOut struct {
	ListResource string
	Target       string
	Param        string
}

// Plan is the declarative extraction plan for one legacy source. Adding a
// source or a candidate path is a data change here, not new code.
type Plan struct {
	Resources []Resource
	FanOuts   []FanOut
}

// commonSecondary is the opportunistic scan list: endpoints some legacy
// deployments served and others did not. Whatever answers gets snapshotted.
var commonSecondary = []Resource{
	{Name: "dashboard", Candidates: []string{"/api/dashboard", "/api/dashboard/data"}},
	{Name: "checkins", Candidates: []string{"/api/checkins"}},
	{Name: "history", Candidates: []string{"/api/history", "/api/trends"}},
	{Name: "alerts", Candidates: []string{"/api/alerts", "/api/risks"}},
	{Name: "analytics", Candidates: []string{"/api/analytics", "/api/reports"}},
	{Name: "export", Candidates: []string{"/api/export", "/api/all", "/api/data"}},
}

// builtinPlans covers the two known legacy deployments. The candidate lists
// are the endpoint shapes each origin was observed to serve, plus the
// alternates tried while mapping them.
var builtinPlans = map[string]Plan{
	"wall": {
		Resources: append([]Resource{
			{Name: "stats", Candidates: []string{"/api/stats", "/stats"}},
			{Name: "available_months", Candidates: []string{"/api/stats/available-months", "/stats/available-months"}},
			{Name: "feedbacks", Candidates: []string{"/api/feedbacks", "/feedbacks", "/api/feedback", "/api/wall", "/wall"}},
			{Name: "users", Candidates: []string{"/api/users", "/api/users/list", "/api/team", "/api/team/members"}},
		}, commonSecondary...),
		FanOuts: []FanOut{
			{ListResource: "available_months", Target: "stats", Param: "month"},
		},
	},
	"teampulse": {
		Resources: append([]Resource{
			{Name: "metrics", Candidates: []string{"/api/metrics", "/api/stats", "/api/metrics/current"}},
			{Name: "available_months", Candidates: []string{"/api/stats/available-months", "/api/metrics/months"}},
			{Name: "stats", Candidates: []string{"/api/stats", "/api/monthly"}},
			{Name: "users", Candidates: []string{"/api/users", "/api/team", "/api/team/members", "/api/dashboard/users"}},
			{Name: "feedbacks", Candidates: []string{"/api/feedbacks", "/feedbacks"}},
		}, commonSecondary...),
		FanOuts: []FanOut{
			{ListResource: "available_months", Target: "stats", Param: "month"},
			{ListResource: "available_months", Target: "metrics", Param: "month"},
		},
	},
}

// PlanFor returns the extraction plan for a source alias. Unknown aliases
// get the wall plan, which is the superset most deployments answered.
func PlanFor(alias string) Plan {
	if p, ok := builtinPlans[alias]; ok {
		return p
	}
	return builtinPlans["wall"]
}
