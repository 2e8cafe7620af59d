package osmparser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"lintang/saferoute/pkg/datastructure"
	"lintang/saferoute/pkg/geo"

	"github.com/k0kubun/go-ansi"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/schollz/progressbar/v3"
)

var ValidRoadType = map[string]bool{
	"motorway":       true,
	"trunk":          true,
	"primary":        true,
	"secondary":      true,
	"tertiary":       true,
	"unclassified":   true,
	"residential":    true,
	"motorway_link":  true,
	"trunk_link":     true,
	"primary_link":   true,
	"secondary_link": true,
	"tertiary_link":  true,
	"living_street":  true,
	"road":           true,
	"service":        true,
}

// OSMParser builds the raw street network from an openstreetmap pbf extract.
type OSMParser struct {
	mapFile      string
	logger       *slog.Logger
	showProgress bool
}

func NewOSMParser(mapFile string, logger *slog.Logger, showProgress bool) *OSMParser {
	return &OSMParser{mapFile: mapFile, logger: logger, showProgress: showProgress}
}

func (p *OSMParser) newBar(total int, description string) *progressbar.ProgressBar {
	if !p.showProgress {
		return progressbar.DefaultSilent(int64(total))
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// Fetch reads the pbf file twice: first the drivable ways, then only the nodes those ways use.
func (p *OSMParser) Fetch(ctx context.Context) (*datastructure.StreetGraph, error) {
	f, err := os.Open(p.mapFile)
	if err != nil {
		return nil, fmt.Errorf("open openstreetmap file: %w", err)
	}
	defer f.Close()

	ways := []*osm.Way{}
	wayNodes := make(map[osm.NodeID]struct{})

	scanner := osmpbf.New(ctx, f, runtime.GOMAXPROCS(0))
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		way, ok := scanner.Object().(*osm.Way)
		if !ok || !isOsmWayUsedByCars(way.Tags) {
			continue
		}
		ways = append(ways, way)
		for _, n := range way.Nodes {
			wayNodes[n.ID] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("scan openstreetmap ways: %w", err)
	}
	scanner.Close()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	nodes := make(map[osm.NodeID]*osm.Node, len(wayNodes))
	scanner = osmpbf.New(ctx, f, runtime.GOMAXPROCS(0))
	scanner.SkipWays = true
	scanner.SkipRelations = true
	defer scanner.Close()
	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, used := wayNodes[node.ID]; used {
			nodes[node.ID] = node
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan openstreetmap nodes: %w", err)
	}

	p.logger.Info("openstreetmap extract scanned", slog.String("file", p.mapFile),
		slog.Int("ways", len(ways)), slog.Int("nodes", len(nodes)))

	bar := p.newBar(len(ways), "[cyan][1/3][reset] building street graph from openstreetmap ways...")
	return BuildStreetGraph(ways, nodes, func() { bar.Add(1) })
}

// BuildStreetGraph splits every way at the nodes shared with other ways (and at its own ends), so
// graph nodes are intersections and dead ends. Each piece becomes one edge whose geometry holds
// the intermediate way nodes. Two-way streets get an edge in each direction.
func BuildStreetGraph(ways []*osm.Way, nodes map[osm.NodeID]*osm.Node, onWay func()) (*datastructure.StreetGraph, error) {
	usedInRoad := make(map[osm.NodeID]int)
	for _, way := range ways {
		for _, n := range way.Nodes {
			usedInRoad[n.ID]++
		}
	}

	b := datastructure.NewGraphBuilder()
	added := make(map[osm.NodeID]struct{})
	addNode := func(n *osm.Node) {
		if _, ok := added[n.ID]; ok {
			return
		}
		added[n.ID] = struct{}{}
		b.AddNode(int64(n.ID), n.Lat, n.Lon)
	}

	for _, way := range ways {
		if onWay != nil {
			onWay()
		}
		wayNodes := make([]*osm.Node, 0, len(way.Nodes))
		for _, wn := range way.Nodes {
			n, ok := nodes[wn.ID]
			if !ok {
				// clipped extracts reference nodes outside the extract
				continue
			}
			wayNodes = append(wayNodes, n)
		}
		if len(wayNodes) < 2 {
			continue
		}

		info := getWayInfo(way.Tags)
		from := 0
		addNode(wayNodes[from])
		for i := 1; i < len(wayNodes); i++ {
			isLast := i == len(wayNodes)-1
			if !isLast && usedInRoad[wayNodes[i].ID] < 2 {
				continue
			}
			if wayNodes[i].ID == wayNodes[from].ID && i-from < 2 {
				// repeated node, nothing to connect
				from = i
				continue
			}
			addNode(wayNodes[i])

			geometry := make([]datastructure.Coordinate, 0, i-from+1)
			for _, n := range wayNodes[from : i+1] {
				geometry = append(geometry, datastructure.NewCoordinate(n.Lat, n.Lon))
			}
			edge := datastructure.Edge{
				From:       int64(wayNodes[from].ID),
				To:         int64(wayNodes[i].ID),
				Length:     geo.PolylineLength(geometry),
				Geometry:   geometry,
				StreetName: info.name,
				RoadClass:  info.roadClass,
			}
			switch {
			case info.oneWay && !info.reversed:
				b.AddEdge(edge)
			case info.oneWay && info.reversed:
				rev := edge
				rev.From, rev.To = edge.To, edge.From
				rev.Geometry = reverseCoords(geometry)
				b.AddEdge(rev)
			default:
				b.AddBidirectionalEdge(edge)
			}
			from = i
		}
	}

	return b.Build()
}

func reverseCoords(coords []datastructure.Coordinate) []datastructure.Coordinate {
	rev := make([]datastructure.Coordinate, len(coords))
	for i, c := range coords {
		rev[len(coords)-1-i] = c
	}
	return rev
}

type wayInfo struct {
	name      string
	roadClass string
	oneWay    bool
	reversed  bool
}

func getWayInfo(tags osm.Tags) wayInfo {
	info := wayInfo{
		name:      tags.Find("name"),
		roadClass: tags.Find("highway"),
	}
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		info.oneWay = true
	case "-1", "reverse":
		info.oneWay = true
		info.reversed = true
	case "no", "false", "0":
	default:
		if tags.Find("junction") == "roundabout" || info.roadClass == "motorway" {
			info.oneWay = true
		}
	}
	return info
}

func isOsmWayUsedByCars(tags osm.Tags) bool {
	if !ValidRoadType[tags.Find("highway")] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	for _, key := range []string{"access", "motor_vehicle", "motorcar"} {
		v := tags.Find(key)
		if v == "no" || v == "private" {
			return false
		}
	}
	return !strings.Contains(tags.Find("service"), "parking")
}
