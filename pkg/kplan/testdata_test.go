package kplan

const validPlan = `<!-- KAIZA_PLAN_HASH:  STATUS: DRAFT -->
# Foundation Plan

## Metadata
Title: Bootstrap
Description: Initial write enablement.

## Scope & Constraints
Scope MUST be limited to src/.

## Phase Definitions

### Phase: PHASE_1
- Phase ID: PHASE_1
- Objective: Create the initial source file
- Allowed Operations: CREATE
- Forbidden Operations: DELETE
- Required Intent Artifacts: src/a.txt.intent.md
- Verification Commands: go build ./...
- Expected Outcomes: file exists
- Failure Stop Conditions: build fails

## Path Allowlist
- src/*

## Verification Gates
All phases MUST pass verification commands.

## Forbidden Actions
Agents MUST NOT modify files outside the allowlist.

## Rollback Policy
Revert via git MUST be used on failure.
`

const ambiguousPlan = `# Plan

## Metadata
Title: X

## Scope & Constraints
You should try to be careful if possible.

## Phase Definitions

### Phase: PHASE_1
- Phase ID: PHASE_1
- Objective: Write code {with braces};
- Allowed Operations: CREATE
- Forbidden Operations: DELETE
- Required Intent Artifacts: a.intent.md
- Verification Commands: true
- Expected Outcomes: ok
- Failure Stop Conditions: never

## Path Allowlist
- ../escape

## Verification Gates
x

## Forbidden Actions
x

## Rollback Policy
x
`
