// Package genetics parses raw genotype exports into GeneticProfile
// values. The input is the tab-delimited consumer-genomics format:
// rsid, chromosome, position, genotype, one call per line, with
// #-prefixed comment lines.
package genetics

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/pgx-med-guard-server/internal/domain"
)

// snpGenes maps reference SNP identifiers onto the metabolism genes the
// scoring engine recognizes. Calls for rsids outside this table are
// retained on the profile under their rsid and ignored by scoring.
var snpGenes = map[string]string{
	"rs3892097": domain.GeneCYP2D6,
	"rs4244285": domain.GeneCYP2C19,
	"rs1799853": domain.GeneCYP2C9,
	"rs776746":  domain.GeneCYP3A45,
	"rs762551":  domain.GeneCYP1A2,
}

const commentMarker = "#"

// defaultCacheSize bounds the parsed-profile cache. Re-importing the
// same export file is common on the mobile client, so parses are cached
// by content hash. Analysis results themselves are never cached.
const defaultCacheSize = 64

// Parser converts genotype exports into profiles.
type Parser struct {
	logger *logrus.Logger
	cache  *lru.Cache[string, *domain.GeneticProfile]
}

// NewParser creates a parser with a content-hash parse cache.
func NewParser(logger *logrus.Logger) (*Parser, error) {
	cache, err := lru.New[string, *domain.GeneticProfile](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create parse cache: %w", err)
	}
	return &Parser{logger: logger, cache: cache}, nil
}

// Parse reads a raw genotype export and returns the profile. The result
// for identical content is served from cache.
func (p *Parser) Parse(data []byte, sourceFile string) (*domain.GeneticProfile, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if cached, ok := p.cache.Get(key); ok {
		p.logger.WithField("source", sourceFile).Debug("Genotype parse served from cache")
		return cached, nil
	}

	profile, err := p.parse(data, sourceFile)
	if err != nil {
		return nil, err
	}

	p.cache.Add(key, profile)
	return profile, nil
}

func (p *Parser) parse(data []byte, sourceFile string) (*domain.GeneticProfile, error) {
	profile := &domain.GeneticProfile{
		Genotypes:  make(map[string]string),
		ImportedAt: time.Now().UTC(),
		SourceFile: sourceFile,
	}

	var skipped int
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentMarker) {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			skipped++
			continue
		}

		rsid := strings.TrimSpace(fields[0])
		genotype := strings.TrimSpace(fields[3])
		if rsid == "" || genotype == "" {
			skipped++
			continue
		}

		if gene, ok := snpGenes[rsid]; ok {
			profile.Genotypes[gene] = genotype
		} else {
			profile.Genotypes[rsid] = genotype
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan genotype data: %w", err)
	}

	if len(profile.Genotypes) == 0 {
		return nil, domain.NewValidationError("file", "no genotype calls found in input", sourceFile)
	}

	p.logger.WithFields(logrus.Fields{
		"source":    sourceFile,
		"genotypes": len(profile.Genotypes),
		"skipped":   skipped,
	}).Info("Parsed genotype file")

	return profile, nil
}
