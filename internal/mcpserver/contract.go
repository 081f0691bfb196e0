package mcpserver

// RecurrenceContract describes how stored events map to calendar days, for
// LLM consumers creating or moving events.
const RecurrenceContract = `# Kalendar Recurrence Rules

Every event has an anchor date (` + "`date`" + `, written ` + "`YYYY-MM-DDTHH:MM`" + ` in the
calendar time zone) and one recurrence rule. Only calendar days matter; the
time of day is shown but never affects matching.

## Rules

1. **No occurrence before the anchor.** Every rule starts on the anchor day.
2. **none**: the anchor day only.
3. **daily**: every day from the anchor on.
4. **weekly**: every day whose weekday is in ` + "`days_of_week`" + ` (0=Sunday .. 6=Saturday).
   An empty list repeats on the anchor's weekday.
5. **monthly**: every month on the anchor's day-of-month. Months without that
   day are skipped (an event on the 31st does not appear in April).
6. **custom**: whole weeks are counted from the anchor day; every day of each
   N-th week matches, where N is ` + "`interval`" + ` (default 2, minimum 1).
   With interval 2 and a Wednesday anchor, the Wednesday-to-Tuesday block
   containing the anchor matches, the next block does not, and so on.

## Conflicts

Two events conflict when their ` + "`date`" + ` strings are identical. Creating, updating
or moving an event onto a conflicting date is rejected. Recurring occurrences
do not count: a daily event at 09:00 does not block a single event on a later
day at 09:00.

## Moving

` + "`move_event`" + ` changes only the anchor day. The time of day and the rule are kept,
so a weekly event moved from a Wednesday to a Friday keeps its explicit
weekday list.
`
