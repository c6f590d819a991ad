// catalog-recovery rebuilds the artifact catalog from the backup files
// already sitting in storage. Use it after a lost or corrupted registry
// database to restore visibility into existing backups.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/dustin/go-humanize"

	"github.com/supporttools/GoDBVault/pkg/config"
	"github.com/supporttools/GoDBVault/pkg/registry"
)

var (
	dryRun       = flag.Bool("dry-run", false, "Scan storage and report what would be recorded without writing to the catalog")
	verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	scanLocal    = flag.Bool("local", true, "Scan the local backup directory")
	scanS3       = flag.Bool("s3", true, "Scan the configured S3 bucket")
	mergeMode    = flag.Bool("merge", false, "Skip artifacts already present in the catalog instead of aborting")
	forceRebuild = flag.Bool("force", false, "Proceed even when the catalog already has records")
)

// artifactNamePattern matches the {engine}_{database}_{timestamp}{ext} names
// the backup orchestrator produces. Database names may contain underscores,
// so the timestamp anchors the split.
var artifactNamePattern = regexp.MustCompile(`^([a-z0-9]+)_(.+)_(\d{8}_\d{6})(\.[a-z.]+)$`)

// RecoveredArtifact is a backup file found in storage that is missing from
// the catalog.
type RecoveredArtifact struct {
	Name      string
	Engine    string
	Database  string
	Timestamp string
	Size      int64
	ModTime   time.Time
	Storage   string
}

// CreatedAt derives the artifact creation time from the name's timestamp,
// falling back to the storage modification time when the name does not parse.
func (a RecoveredArtifact) CreatedAt() time.Time {
	if ts, err := time.Parse("20060102_150405", a.Timestamp); err == nil {
		return ts
	}
	return a.ModTime
}

func main() {
	flag.Parse()

	log.Println("Starting catalog recovery...")
	config.LoadConfiguration()

	if err := registry.Initialize(); err != nil {
		log.Fatalf("Failed to initialize registry database: %v", err)
	}
	defer func() {
		if err := registry.Close(); err != nil {
			log.Printf("Error closing registry database: %v", err)
		}
	}()

	catalog := registry.NewArtifactRepository(registry.GetDB())

	existing, err := catalog.List()
	if err != nil {
		log.Fatalf("Failed to read artifact catalog: %v", err)
	}
	if len(existing) > 0 && !*forceRebuild && !*mergeMode {
		log.Printf("Catalog already contains %d artifacts. Use -force to add anyway or -merge to skip existing names.", len(existing))
		os.Exit(0)
	}

	existingNames := make(map[string]bool, len(existing))
	for _, artifact := range existing {
		existingNames[artifact.Name] = true
	}

	var recovered []RecoveredArtifact

	if *scanLocal && config.CFG.Storage.Local.Directory != "" {
		found := scanLocalStorage(config.CFG.Storage.Local.Directory)
		log.Printf("Found %d artifacts in local storage", len(found))
		recovered = append(recovered, found...)
	}

	if *scanS3 && config.CFG.Storage.S3.Bucket != "" {
		found := scanS3Storage()
		log.Printf("Found %d artifacts in S3 storage", len(found))
		recovered = append(recovered, found...)
	}

	recovered = reconcileArtifacts(recovered)

	var created, skipped int
	var totalSize int64

	for _, artifact := range recovered {
		if *mergeMode && existingNames[artifact.Name] {
			skipped++
			if *verbose {
				log.Printf("Skipping artifact already in catalog: %s", artifact.Name)
			}
			continue
		}

		totalSize += artifact.Size

		if *dryRun {
			created++
			log.Printf("Would record artifact: %s (%s, %s)", artifact.Name, artifact.Storage, humanize.Bytes(uint64(artifact.Size)))
			continue
		}

		record := &registry.Artifact{
			Name:         artifact.Name,
			Engine:       artifact.Engine,
			DatabaseName: artifact.Database,
			Size:         artifact.Size,
			Storage:      artifact.Storage,
			CreatedAt:    artifact.CreatedAt(),
		}
		if err := catalog.Create(record); err != nil {
			log.Printf("Failed to record artifact %s: %v", artifact.Name, err)
			continue
		}
		created++
		if *verbose {
			log.Printf("Recovered artifact: %s (%s, %s)", artifact.Name, artifact.Storage, humanize.Bytes(uint64(artifact.Size)))
		}
	}

	log.Println("Recovery summary:")
	log.Printf("- Artifacts recorded: %d", created)
	log.Printf("- Artifacts skipped:  %d", skipped)
	log.Printf("- Total size:         %s", humanize.Bytes(uint64(totalSize)))
	if *dryRun {
		log.Println("Dry run completed, no catalog records were written")
	}
}

// parseArtifactName extracts engine, database, and timestamp from a backup
// file name. Table export and import staging files share the underscore
// layout and would otherwise parse with a bogus engine, so their prefixes
// are rejected outright.
func parseArtifactName(filename string) (RecoveredArtifact, bool) {
	if strings.HasPrefix(filename, "export_") || strings.HasPrefix(filename, "import_") {
		return RecoveredArtifact{}, false
	}

	matches := artifactNamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return RecoveredArtifact{}, false
	}

	return RecoveredArtifact{
		Name:      filename,
		Engine:    matches[1],
		Database:  matches[2],
		Timestamp: matches[3],
	}, true
}

// scanLocalStorage walks the local backup directory and collects every file
// whose name parses as a backup artifact.
func scanLocalStorage(dir string) []RecoveredArtifact {
	var artifacts []RecoveredArtifact

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if *verbose {
				log.Printf("Error accessing path %s: %v", path, err)
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}

		artifact, ok := parseArtifactName(info.Name())
		if !ok {
			if *verbose {
				log.Printf("Skipping file with unrecognized name: %s", info.Name())
			}
			return nil
		}

		artifact.Size = info.Size()
		artifact.ModTime = info.ModTime()
		artifact.Storage = "local"
		artifacts = append(artifacts, artifact)
		return nil
	})
	if err != nil {
		log.Printf("Error walking local backup directory: %v", err)
	}

	return artifacts
}

// scanS3Storage lists the configured bucket and collects every object whose
// key's base name parses as a backup artifact.
func scanS3Storage() []RecoveredArtifact {
	var artifacts []RecoveredArtifact
	cfg := config.CFG.Storage.S3

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(cfg.Region),
		Endpoint:         aws.String(cfg.Endpoint),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
	})
	if err != nil {
		log.Printf("Failed to create S3 session: %v", err)
		return artifacts
	}

	svc := s3.New(sess)
	params := &s3.ListObjectsV2Input{Bucket: aws.String(cfg.Bucket)}
	if cfg.Prefix != "" {
		params.Prefix = aws.String(cfg.Prefix)
	}

	err = svc.ListObjectsV2Pages(params, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)

			artifact, ok := parseArtifactName(filepath.Base(key))
			if !ok {
				if *verbose {
					log.Printf("Skipping S3 object with unrecognized name: %s", key)
				}
				continue
			}

			artifact.Size = aws.Int64Value(obj.Size)
			artifact.ModTime = aws.TimeValue(obj.LastModified)
			artifact.Storage = "s3"
			artifacts = append(artifacts, artifact)
		}
		return true
	})
	if err != nil {
		log.Printf("Error listing S3 objects: %v", err)
	}

	return artifacts
}

// reconcileArtifacts deduplicates artifacts found in more than one storage
// backend, keeping the copy that lives in the configured backend so restores
// read from where the orchestrator writes.
func reconcileArtifacts(artifacts []RecoveredArtifact) []RecoveredArtifact {
	preferred := config.CFG.Storage.Type
	if preferred == "" {
		preferred = "local"
	}

	byName := make(map[string]RecoveredArtifact, len(artifacts))
	var order []string

	for _, artifact := range artifacts {
		current, seen := byName[artifact.Name]
		if !seen {
			byName[artifact.Name] = artifact
			order = append(order, artifact.Name)
			continue
		}

		if *verbose {
			log.Printf("Artifact %s present in both %s and %s storage", artifact.Name, current.Storage, artifact.Storage)
		}
		if artifact.Storage == preferred && current.Storage != preferred {
			byName[artifact.Name] = artifact
		}
	}

	reconciled := make([]RecoveredArtifact, 0, len(order))
	for _, name := range order {
		reconciled = append(reconciled, byName[name])
	}
	return reconciled
}
