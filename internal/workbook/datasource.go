package workbook

import "sort"

// SourceInfo is one detected data source with its resolved connection.
type SourceInfo struct {
	Name           string
	Caption        string
	ConnectionType string
	Server         string
	Database       string
	Schema         string
	Warehouse      string
	EmbeddedFile   string
	Primary        bool
	Worksheets     []string
}

// connectionPriority orders connection classes from most to least
// specific when a datasource declares several (federated sources nest
// the real connection under a federated wrapper).
var connectionPriority = []string{"snowflake", "postgres", "mysql", "hyper", "excel-direct", "textscan", "federated"}

// liveClasses are connection types backed by a queryable server.
var liveClasses = map[string]bool{"snowflake": true, "postgres": true, "mysql": true}

// DetectSources deduplicates the workbook's datasources, resolves each
// one's most specific connection, marks the primary source and maps
// worksheets onto it.
func DetectSources(s *Structure) []SourceInfo {
	var sources []SourceInfo
	seen := make(map[string]bool)

	for _, ds := range s.Datasources {
		if ds.Name == "Parameters" || ds.Caption == "Parameters" {
			continue
		}
		key := ds.Name + "_" + ds.Caption
		if seen[key] || len(ds.Connections) == 0 {
			continue
		}
		seen[key] = true

		conn := primaryConnection(ds.Connections)
		info := SourceInfo{
			Name:           ds.Name,
			Caption:        ds.Caption,
			ConnectionType: conn.Class,
			Server:         conn.Server,
			Database:       conn.DBName,
			Schema:         conn.Schema,
			Warehouse:      conn.Warehouse,
		}
		if info.Caption == "" {
			info.Caption = info.Name
		}
		if conn.Class == "hyper" {
			info.EmbeddedFile = conn.DBName
			if info.EmbeddedFile == "" {
				info.EmbeddedFile = conn.Filename
			}
		}
		sources = append(sources, info)
	}

	if primary := pickPrimary(sources); primary != nil {
		primary.Primary = true
		for name := range s.Worksheets {
			primary.Worksheets = append(primary.Worksheets, name)
		}
		sort.Strings(primary.Worksheets)
	}
	return sources
}

func primaryConnection(conns []Connection) Connection {
	for _, class := range connectionPriority {
		for _, c := range conns {
			if c.Class == class {
				return c
			}
		}
	}
	return conns[0]
}

// pickPrimary prefers live warehouse connections over extracts over
// file sources.
func pickPrimary(sources []SourceInfo) *SourceInfo {
	for i := range sources {
		if liveClasses[sources[i].ConnectionType] {
			return &sources[i]
		}
	}
	for i := range sources {
		if sources[i].ConnectionType == "hyper" {
			return &sources[i]
		}
	}
	if len(sources) > 0 {
		return &sources[0]
	}
	return nil
}

// RecommendedSource returns the source the generated app should load
// from: the primary one, or the first detected.
func RecommendedSource(sources []SourceInfo) *SourceInfo {
	for i := range sources {
		if sources[i].Primary {
			return &sources[i]
		}
	}
	if len(sources) > 0 {
		return &sources[0]
	}
	return nil
}
