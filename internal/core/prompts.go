// ABOUTME: French prompt templates for concept extraction, validity assessment and the strict JSON pass
// ABOUTME: The assessment prompt is grounded only in retrieved evidence and extracted concepts
package core

import (
	"fmt"
	"strings"

	"github.com/harper/actes-verif/internal/models"
)

// Section headings requested from the model, in order
const (
	HeadingConfidence = "Indice de confiance"
	HeadingAnalysis   = "Analyse du contenu"
	HeadingConcepts   = "Concepts identifiés"
	HeadingConsistent = "Éléments cohérents avec les références"
	HeadingDivergent  = "Éléments divergents"
	HeadingCitations  = "Citations"
	HeadingConclusion = "Conclusion"
)

// NoEvidenceNotice replaces the evidence section when retrieval found nothing
const NoEvidenceNotice = "Aucune référence correspondante n'a été trouvée dans la base juridique."

func conceptPrompt(text string, n int) string {
	return fmt.Sprintf(`En tant qu'expert en droit administratif des collectivités territoriales, identifie les %d notions juridiques les plus significatives de ce document.

Concentre-toi sur :
- la nature de la mesure administrative prise
- le type d'acte (arrêté, décision, délibération)
- les personnes ou catégories de personnes concernées
- le périmètre territorial de la mesure
- l'autorité qui prend l'acte et le fondement de sa compétence

Réponds uniquement avec une liste d'exactement %d termes séparés par des virgules, sans phrase explicative.

Texte à analyser :
%s`, n, n, text)
}

// assessmentPrompt assembles the grounded validity prompt
func assessmentPrompt(text string, concepts []string, passages []models.Passage) string {
	var sections []string

	sections = append(sections, `En tant qu'expert en droit administratif et constitutionnel, évalue la validité juridique du document ci-dessous.

Règles :
- Appuie-toi exclusivement sur les références juridiques fournies et sur les concepts identifiés.
- Ignore toute référence juridique que le document lui-même affirme (visas, articles cités) tant qu'elle n'apparaît pas dans les références fournies.
- Cite les références utilisées par leur numéro entre crochets, par exemple [1].
`)

	sections = append(sections, "DOCUMENT À ANALYSER :\n"+text+"\n")
	sections = append(sections, formatConcepts(concepts))
	sections = append(sections, formatEvidence(passages))
	sections = append(sections, formatInstructions())

	return strings.Join(sections, "\n")
}

func formatConcepts(concepts []string) string {
	var sb strings.Builder
	sb.WriteString("CONCEPTS IDENTIFIÉS :\n")
	if len(concepts) == 0 {
		sb.WriteString("Aucun concept n'a pu être extrait du document.\n")
		return sb.String()
	}
	sb.WriteString(strings.Join(concepts, ", "))
	sb.WriteString("\n")
	return sb.String()
}

func formatEvidence(passages []models.Passage) string {
	var sb strings.Builder
	sb.WriteString("RÉFÉRENCES JURIDIQUES :\n")
	if len(passages) == 0 {
		sb.WriteString(NoEvidenceNotice + "\n")
		return sb.String()
	}
	for i, p := range passages {
		sb.WriteString(fmt.Sprintf("\n[%d] %s (concept : %s, similarité : %.2f)\n", i+1, p.Chunk.Citation(), p.Concept, p.Score))
		sb.WriteString(p.Chunk.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatInstructions() string {
	var sb strings.Builder
	sb.WriteString("Réponds exactement au format suivant :\n")
	sb.WriteString(HeadingConfidence + " : [pourcentage entre 0 et 100, où 100 indique une confiance totale dans la validité du document]\n")
	sb.WriteString(HeadingAnalysis + " : [analyse du contenu de l'acte]\n")
	sb.WriteString(HeadingConcepts + " : [concepts juridiques pertinents]\n")
	sb.WriteString(HeadingConsistent + " : [points conformes aux références]\n")
	sb.WriteString(HeadingDivergent + " : [points absents ou contraires aux références]\n")
	sb.WriteString(HeadingCitations + " : [références utilisées]\n")
	sb.WriteString(HeadingConclusion + " : [conclusion]\n")
	return sb.String()
}

// strictPrompt asks the model to restate a free-text verdict as JSON
func strictPrompt(raw string) string {
	return `Reformule l'analyse suivante en un unique objet JSON, sans texte autour, avec exactement ces clés :
{"indice_de_confiance": nombre entre 0 et 100, "analyse_du_contenu": texte, "concepts_identifies": texte, "elements_coherents": texte, "elements_divergents": texte, "citations": texte, "conclusion": texte}

Analyse :
` + raw
}

// formGuidance summarizes the formal rules that apply to acts of municipal authorities
const formGuidance = `Règles de forme des actes des autorités communales :
- Un arrêté n'obéit à aucune forme imposée, mais il doit être écrit, daté et signé ; le signataire doit être identifiable.
- Les visas citent les textes sur lesquels l'acte se fonde. Leur absence n'entraîne pas à elle seule l'annulation.
- Les considérants exposent les motifs de droit et de fait. La motivation est obligatoire pour les décisions individuelles défavorables et pour celles qui dérogent aux règles générales (loi du 11 juillet 1979).
- Le dispositif, découpé en articles, énonce l'objet de l'acte dès le premier article, puis les dispositions complémentaires et l'autorité chargée de l'exécution.
- Les actes réglementaires sont publiés ou affichés, les actes individuels notifiés aux intéressés, avant toute exécution (articles L. 2131-1 et L. 2131-3 du CGCT).
- Les actes soumis à l'obligation de transmission ne deviennent exécutoires qu'après transmission au représentant de l'État (article L. 2131-1 du CGCT).
- Un acte ne peut pas rétroagir, sauf disposition législative ou situation qui l'exige.`

// formJSONShape is the JSON object requested from the form analysis
const formJSONShape = `{
  "type_de_document": "arrêté" | "décision" | "délibération" | "convention" | "autre",
  "conformite_aux_exigences_legales": {
    "ecriture": {"etat": "conforme" | "non conforme" | "implicite", "explication": texte},
    "date": {...}, "signature": {...}, "visas": {...}, "considerants": {...},
    "dispositif": {...}, "publication": {...}, "transmission": {...}
  },
  "observation": texte résumant les observations,
  "niveau_de_confiance": nombre entre 0 et 100,
  "collectivite": nom de la collectivité qui a émis le texte,
  "signataire": nom et prénom du signataire
}`

// formPrompt asks for the formal conformity analysis of text as JSON
func formPrompt(text string, references []models.Passage) string {
	var sb strings.Builder
	sb.WriteString(`En tant qu'expert en droit administratif français, analyse la forme du document ci-dessous et évalue sa conformité aux exigences légales.
Pour chaque exigence, indique "implicite" lorsque le texte ne permet pas de la vérifier mais qu'elle est présumée respectée.
Précise la collectivité qui a émis l'acte et la personne qui le signe.

`)
	sb.WriteString(formGuidance)
	sb.WriteString("\n\n")
	if len(references) > 0 {
		sb.WriteString(formatEvidence(references))
		sb.WriteString("\n")
	}
	sb.WriteString("DOCUMENT À ANALYSER :\n")
	sb.WriteString(text)
	sb.WriteString("\n\nRéponds uniquement avec un objet JSON de la forme :\n")
	sb.WriteString(formJSONShape)
	sb.WriteString("\n")
	return sb.String()
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
