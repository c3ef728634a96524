package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeAnalyzeCWE() string {
	return `Fetches SonarQube Cloud issues for a project, classifies each one into CWE weakness categories and returns aggregate statistics.

USE WHEN:
- Summarizing which weakness classes dominate a project's findings
- Prioritizing security remediation by CWE category
- Checking how many issues map to a known weakness at all

INTERPRETING RESULTS:
- confidence high: the rule declares the CWE in its security standards
- confidence medium: inferred from an issue tag or the rule number
- confidence low: no weakness could be inferred (cwe_ids empty)
- top_categories percentages are shares of all CWE occurrences, not of issues
- coverage.percentage is the share of issues with at least one CWE
- auxiliary signals carry a status: measured, estimated or unavailable
- fingerprint changes only when the statistics change

METRICS RETURNED:
- issues with cwe_ids, confidence and source
- statistics: per-weakness counts, severity and type breakdowns, top categories, coverage
- auxiliary: security hotspots, security rules, CWE facet, project metrics, trends`
}

func describeClassifyIssue() string {
	return `Classifies a single issue (rule key plus optional tags) into CWE categories without listing a project.

USE WHEN:
- Explaining why an issue was or was not mapped to a weakness
- Checking what a rule maps to before running a full analysis

INTERPRETING RESULTS:
- source declared: the rule's security standards or its cwe-N tags name the weakness
- source issue_tag: a tag such as cwe-89 was found on the issue
- source rule_key: the rule number appears in the built-in mapping table
- source none: unclassified

METRICS RETURNED:
- cwe_ids, confidence, source and reference entries for each known weakness`
}

func describeLookupCWE() string {
	return `Returns the reference entry for a CWE identifier. Accepts "CWE-89", "cwe_89" or "89".

USE WHEN:
- Naming a weakness returned by another tool
- Linking to the MITRE definition page

INTERPRETING RESULTS:
- category groups related weaknesses (Injection, Access Control, ...)
- severity is the typical impact, not a finding severity

METRICS RETURNED:
- id, name, description, category, severity, url`
}

func describeLookupCVEs() string {
	return `Lists published CVEs that the National Vulnerability Database records against a CWE identifier.

USE WHEN:
- Showing real-world vulnerabilities behind a weakness found in a project
- Judging how often a weakness is exploited in practice

INTERPRETING RESULTS:
- total counts every matching CVE; cves holds the first page only
- severity comes from CVSS v3.1, then v3.0, then v2, or UNKNOWN without a score
- the public API is rate limited; errors here do not reflect on SonarQube data

METRICS RETURNED:
- cwe_id, total, and per CVE: id, description, severity, score, published, last_modified, cwe_ids, url`
}

func describeSearchCWE() string {
	return `Searches the CWE reference catalog by id, name, description or category. An empty query lists every entry.

USE WHEN:
- Finding the identifier for a weakness described in words

INTERPRETING RESULTS:
- entries are ordered by CWE number

METRICS RETURNED:
- matching catalog entries`
}

func describeRuleMappings() string {
	return `Lists the rule-number to CWE table used when a rule declares no weakness and the issue has no CWE tag.

USE WHEN:
- Auditing the fallback mapping
- Checking whether a rule number is covered

INTERPRETING RESULTS:
- keys are rule numbers without the language prefix (S2076 matches java:S2076 and python:S2076)

METRICS RETURNED:
- map of rule number to CWE id`
}
